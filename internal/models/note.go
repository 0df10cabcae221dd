// Package models defines the domain types shared across vaultsnap packages.
package models

import "time"

// NoteMetadata describes one note file in the vault.
type NoteMetadata struct {
	Path    string    `json:"path"` // relative to vault root
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Processed is the outcome of one successful image event.
type Processed struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"` // path reported by the watcher
	Final      string    `json:"final"`  // path of the image after transcode and rename
	Note       string    `json:"note"`   // vault-relative note path, empty when add_to_note is off
	Code       string    `json:"code"`   // text appended to the note
	Prefix     string    `json:"prefix"`
	Number     int       `json:"number"` // 0 when numbering was not applied
	Transcoded bool      `json:"transcoded"`
	Renamed    bool      `json:"renamed"`
	Checksum   string    `json:"checksum"` // sha256 of the final image
	Warnings   []string  `json:"warnings,omitempty"`
	At         time.Time `json:"at"`
}
