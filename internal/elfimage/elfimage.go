// Package elfimage opens and validates the source ELF binary. It is a
// thin wrapper around debug/elf that enforces the narrow container this
// core accepts: ELF32, little-endian, ARM.
package elfimage

import (
	"debug/elf"
	"errors"
	"fmt"
)

var (
	ErrNotELF           = errors.New("file is not a valid ELF container")
	ErrUnsupportedClass = errors.New("only 32-bit ELF binaries are supported")
	ErrUnsupportedData  = errors.New("only little-endian ELF binaries are supported")
	ErrUnsupportedArch  = errors.New("only ARM ELF binaries are supported")
)

// Context is an opened, validated ELF file. Every byte slice handed out
// by its sections is borrowed and stays valid for Context's lifetime;
// callers must not use them after Close.
type Context struct {
	*elf.File
	path string
}

// Open loads path from disk and validates it against the constraints
// this core requires. On any validation failure the underlying file
// handle is closed before the error is returned.
func Open(path string) (*Context, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file '%s': %w: %v", path, ErrNotELF, err)
	}

	if err := validate(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Context{File: f, path: path}, nil
}

func validate(f *elf.File) error {
	if f.Class != elf.ELFCLASS32 {
		return fmt.Errorf("class is %s: %w", f.Class, ErrUnsupportedClass)
	}

	if f.Data != elf.ELFDATA2LSB {
		return fmt.Errorf("data encoding is %s: %w", f.Data, ErrUnsupportedData)
	}

	if f.Machine != elf.EM_ARM {
		return fmt.Errorf("machine type is %s: %w", f.Machine, ErrUnsupportedArch)
	}

	return nil
}

// Path returns the filesystem path this Context was opened from.
func (c *Context) Path() string {
	return c.path
}

// SectionByName returns the first section with the given name, or nil
// if none matches.
func (c *Context) SectionByName(name string) *elf.Section {
	for _, section := range c.Sections {
		if section.Name == name {
			return section
		}
	}
	return nil
}

// SectionsByName returns every section with the given name, in file
// order. Used to detect duplicate reserved sections.
func (c *Context) SectionsByName(name string) []*elf.Section {
	var out []*elf.Section
	for _, section := range c.Sections {
		if section.Name == name {
			out = append(out, section)
		}
	}
	return out
}

// SectionsOfType returns every section with the given type, in file
// order.
func (c *Context) SectionsOfType(typ elf.SectionType) []*elf.Section {
	var out []*elf.Section
	for _, section := range c.Sections {
		if section.Type == typ {
			out = append(out, section)
		}
	}
	return out
}

// SectionIndex returns the index of section within Sections, or -1 if
// it is not one of this Context's sections.
func (c *Context) SectionIndex(section *elf.Section) int {
	for i, s := range c.Sections {
		if s == section {
			return i
		}
	}
	return -1
}
