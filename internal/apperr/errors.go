// Package apperr defines the sentinel errors shared across vaultsnap packages.
package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrNoCandidate = errors.New("no candidate note found in vault")
	ErrCooldown    = errors.New("cooldown active")

	ErrTranscodeUnavailable = errors.New("image transcoder unavailable")
	ErrTranscodeFailed      = errors.New("image transcode failed")
	ErrUnsupportedImage     = errors.New("unsupported image format")
	ErrRenameFailed         = errors.New("rename failed")
)
