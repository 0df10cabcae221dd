// Package transcode converts images to JPEG, flattening transparency onto a
// background colour.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	// Decoders for every source format we accept.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/starford/vaultsnap/internal/apperr"
)

// TargetExt is the extension of transcoded files.
const TargetExt = ".jpg"

// White is used when a background colour cannot be parsed.
var White = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Options controls one conversion.
type Options struct {
	Quality    int // 1-100
	Background color.Color
}

// Transcoder converts the image at src and returns the path of the result.
type Transcoder interface {
	ToJPEG(ctx context.Context, src string, opts Options) (string, error)
}

// JPEG is the default Transcoder. The output is written next to the source
// with the extension replaced by TargetExt.
type JPEG struct{}

var _ Transcoder = JPEG{}

// IsJPEG reports whether path already carries a JPEG extension.
func IsJPEG(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

// ToJPEG decodes src, flattens it onto opts.Background and encodes it as JPEG.
func (JPEG) ToJPEG(ctx context.Context, src string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("transcode: open: %w", err)
	}
	img, _, err := image.Decode(in)
	in.Close()
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return "", fmt.Errorf("transcode: %s: %w", filepath.Base(src), apperr.ErrUnsupportedImage)
		}
		return "", fmt.Errorf("transcode: decode %s: %w", filepath.Base(src), err)
	}

	bg := opts.Background
	if bg == nil {
		bg = White
	}
	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)

	dst := strings.TrimSuffix(src, filepath.Ext(src)) + TargetExt
	if err := writeJPEG(dst, flat, opts.Quality); err != nil {
		return "", err
	}
	return dst, nil
}

func writeJPEG(dst string, img image.Image, quality int) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".vaultsnap-*.tmp")
	if err != nil {
		return fmt.Errorf("transcode: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: max(1, min(100, quality))}); err != nil {
		return fmt.Errorf("transcode: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("transcode: close temp: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("transcode: rename: %w", err)
	}
	success = true
	return nil
}

// NormalizeColor ensures a colour string starts with "#".
func NormalizeColor(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	return s
}

// ParseColor parses #RRGGBB (the leading "#" is optional).
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(NormalizeColor(s), "#")
	if len(hex) != 6 {
		return White, fmt.Errorf("transcode: invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return White, fmt.Errorf("transcode: invalid colour %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
