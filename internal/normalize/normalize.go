// Package normalize validates raw image payloads and converts them to
// bounded-dimension JPEGs.
package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/catalogops/imageingest/internal/ingest"

	// Registers WebP decoding with image.Decode; search surfaces serve it
	// routinely for product photos.
	_ "golang.org/x/image/webp"
)

// Config controls output bounds and encoding quality.
type Config struct {
	MaxDimension int
	JPEGQuality  int
}

// Normalizer re-encodes payloads into the canonical asset format. Pure CPU:
// it operates on a fully-read byte slice, never holding a connection open.
type Normalizer struct {
	cfg Config
}

// New builds a Normalizer; zero config values fall back to defaults.
func New(cfg Config) *Normalizer {
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = 1200
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 88
	}
	return &Normalizer{cfg: cfg}
}

// Normalize sniff-decodes data (the content-type hint is never trusted),
// downscales so the longer edge is at most MaxDimension (never upscaling,
// aspect preserved), flattens alpha onto white, and re-encodes as JPEG.
// Non-image, truncated, and zero-dimension payloads return *DecodeError.
func (n *Normalizer) Normalize(data []byte) (ingest.NormalizedImage, error) {
	if len(data) == 0 {
		return ingest.NormalizedImage{}, &ingest.DecodeError{Err: errors.New("empty payload")}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return ingest.NormalizedImage{}, &ingest.DecodeError{Err: err}
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return ingest.NormalizedImage{}, &ingest.DecodeError{Err: errors.New("zero-dimension image")}
	}

	targetW, targetH := fitWithin(width, height, n.cfg.MaxDimension)
	if targetW != width || targetH != height {
		img = imaging.Resize(img, targetW, targetH, imaging.Lanczos)
	}

	// JPEG has no alpha channel; composite onto white rather than letting
	// transparent pixels keep arbitrary RGB values.
	flat := imaging.New(targetW, targetH, color.White)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(n.cfg.JPEGQuality)); err != nil {
		return ingest.NormalizedImage{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return ingest.NormalizedImage{
		Data:   buf.Bytes(),
		Width:  targetW,
		Height: targetH,
	}, nil
}

// fitWithin scales (w, h) uniformly so the longer edge equals maxDim, or
// returns the input unchanged when it already fits. The shorter edge rounds
// to the nearest pixel and never collapses below one.
func fitWithin(w, h, maxDim int) (int, int) {
	longer := w
	if h > w {
		longer = h
	}
	if longer <= maxDim {
		return w, h
	}
	scale := float64(maxDim) / float64(longer)
	if w >= h {
		return maxDim, clampDim(math.Round(float64(h) * scale))
	}
	return clampDim(math.Round(float64(w) * scale)), maxDim
}

func clampDim(v float64) int {
	if v < 1 {
		return 1
	}
	return int(v)
}
