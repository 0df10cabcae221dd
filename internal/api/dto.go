package api

import (
	"github.com/starford/vaultsnap/internal/models"
	"github.com/starford/vaultsnap/internal/noteservice"
	"github.com/starford/vaultsnap/internal/settings"
)

// StatusSource reports the processor state.
type StatusSource interface {
	Last() *models.Processed
}

// Runtime describes what the running process watches.
type Runtime struct {
	Folder    string
	Vault     string
	Processor StatusSource // nil when no watcher runs
}

// Settings is the settings payload (aliased from the domain layer).
type Settings = settings.Settings

// Preview is the preview payload (aliased from the domain layer).
type Preview = noteservice.Preview

// StatusResponse describes the running watcher.
type StatusResponse struct {
	Folder   string            `json:"folder" example:"/home/me/Pictures/Screenshots"`
	Vault    string            `json:"vault" example:"/home/me/vault"`
	Cooldown float64           `json:"cooldown" example:"2"`
	Last     *models.Processed `json:"last,omitempty"`
}

// HistoryResponse wraps processed entries, newest first.
type HistoryResponse struct {
	Entries []models.Processed `json:"entries"`
}
