package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retrovita/vitalink-core/internal/binary"
	"github.com/retrovita/vitalink-core/internal/catalogue"
	"github.com/retrovita/vitalink-core/internal/diagnostic"
)

func newInspectCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <elf-path>",
		Short: "Load an ELF binary and report its symbols, stubs, relocations, and segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runInspect(opts, args[0])
		},
	}

	return cmd
}

func runInspect(opts *rootOptions, path string) error {
	sink := &diagnostic.CollectingSink{}

	// No import-description file is parsed here (that format is out of
	// scope for this core); a driver with a real catalogue would append
	// its Catalogue implementations to this slice.
	var catalogues []catalogue.Catalogue

	b, err := binary.Load(path, catalogues, sink)
	if err != nil {
		return fmt.Errorf("failed to load '%s': %w", path, err)
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			opts.logger.Warn("failed to release loaded binary", "error", cerr)
		}
	}()

	printReport(b, sink)

	if opts.config.FailOnUnresolvedImport && !b.AllImportsResolved() {
		return fmt.Errorf("one or more imports did not resolve")
	}

	return nil
}

func printReport(b *binary.Binary, sink *diagnostic.CollectingSink) {
	fmt.Printf("symbols:            %d\n", b.NumSymbols())
	fmt.Printf("function stubs:     %d\n", len(b.FunctionStubs()))
	fmt.Printf("variable stubs:     %d\n", len(b.VariableStubs()))
	fmt.Printf("relocation tables:  %d\n", len(b.RelocationTables()))

	relocCount := 0
	for _, table := range b.RelocationTables() {
		relocCount += len(table.Entries)
	}
	fmt.Printf("relocation entries: %d\n", relocCount)

	fmt.Printf("segments:           %d\n", len(b.Segments()))
	for i, seg := range b.Segments() {
		fmt.Printf("  [%d] guest 0x%08x..0x%08x (%d bytes)\n", i, seg.VAddr, seg.VAddr+seg.MemSz, seg.MemSz)
	}

	fmt.Printf("all imports resolved: %v\n", b.AllImportsResolved())

	if len(sink.Warnings) > 0 {
		fmt.Println("warnings:")
		for _, w := range sink.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
}
