// Command vitalink-inspect loads a statically linked ARM ELF executable
// through the vitalink core pipeline and prints a report of what it
// found: symbol counts, stub resolution status, relocation table sizes,
// and the segment address-space map. It does not produce a loadable
// module image; that belongs to a separate encoder this core does not
// implement.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	config     *config
	logger     *slog.Logger
	configPath string
}

func main() {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "vitalink-inspect",
		Short: "Inspect a source ELF binary against the vitalink relocation core",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.config = cfg

			level := slog.LevelInfo
			if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
				return fmt.Errorf("invalid log_level '%s': %w", cfg.LogLevel, err)
			}

			opts.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML/TOML/JSON config file (optional)")

	root.AddCommand(newInspectCommand(opts))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
