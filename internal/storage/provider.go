// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/vaultsnap/internal/models"

// ListOptions controls which notes List returns.
type ListOptions struct {
	// Recursive descends into sub-directories; otherwise only the vault root
	// is scanned.
	Recursive bool
	// SkipSuffixes excludes notes whose file name ends with any of them.
	SkipSuffixes []string
}

// Provider is the interface for vault note operations.
type Provider interface {
	// List returns metadata for every .md note matching opts.
	List(opts ListOptions) ([]models.NoteMetadata, error)
	// Latest returns the most recently modified note matching opts.
	Latest(opts ListOptions) (models.NoteMetadata, error)
	// Stat returns metadata for the note at path (relative to vault root).
	Stat(path string) (models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
}
