package storage

import (
	"errors"
	"io"
	"path"
	"strconv"
	"strings"
)

var (
	ErrNotFound      = errors.New("file not found")
	ErrUnsupported   = errors.New("unsupported storage type")
	ErrInvalidSource = errors.New("invalid source path")
)

// Storage defines the filesystem operations used to materialize output
// packs and to read pack documents.
type Storage interface {
	// ListSlotFiles returns the files in dir named <base>-<N>.<ext> or
	// <base>-<N>_<label>.<ext>.
	ListSlotFiles(dir, base string) ([]SlotFile, error)

	// LinkOrCopy places src at dst, replacing any existing dst.
	LinkOrCopy(src, dst string) error

	CreateDir(path string) error

	Remove(path string) error

	WriteFile(path string, data []byte) error

	ReadFile(path string) ([]byte, error)

	GetReader(path string) (io.ReadCloser, error)

	FileExists(path string) bool
}

// SlotFile is a track file named after a slot number.
type SlotFile struct {
	Path  string
	Slot  int
	Ext   string // without the leading dot
	Label string // alt label, empty for the primary file
}

// IsAlt reports whether the file is an alt variant.
func (f SlotFile) IsAlt() bool { return f.Label != "" }

// ParseSlotFile parses a file name of the form <base>-<N>.<ext> or
// <base>-<N>_<label>.<ext>.
func ParseSlotFile(base, name string) (SlotFile, bool) {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	prefix := base + "-"
	if !strings.HasPrefix(name, prefix) {
		return SlotFile{}, false
	}
	rest := strings.TrimPrefix(name, prefix)

	dot := strings.LastIndex(rest, ".")
	if dot <= 0 || dot == len(rest)-1 {
		return SlotFile{}, false
	}
	stem, ext := rest[:dot], rest[dot+1:]

	var label string
	if i := strings.Index(stem, "_"); i >= 0 {
		stem, label = stem[:i], stem[i+1:]
		if label == "" {
			return SlotFile{}, false
		}
	}

	slot, err := strconv.Atoi(stem)
	if err != nil || slot <= 0 {
		return SlotFile{}, false
	}
	return SlotFile{Slot: slot, Ext: strings.ToLower(ext), Label: label}, true
}

// SlotFileName returns <base>-<slot>.<ext>.
func SlotFileName(base string, slot int, ext string) string {
	return base + "-" + strconv.Itoa(slot) + "." + strings.TrimPrefix(ext, ".")
}
