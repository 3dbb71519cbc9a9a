// Package pipeline orchestrates one capture pass: acquire a pixel region,
// downscale a preview copy, and extract text from the full-resolution image.
package pipeline

import (
	"errors"
	"fmt"
	"image"

	"github.com/nfnt/resize"

	"github.com/Marianoooo45/ocr-qcm-ctk/ocr"
	"github.com/Marianoooo45/ocr-qcm-ctk/screenshot"
)

// ErrCaptureFailed wraps every acquisition or extraction failure. A run is
// all-or-nothing: no partial results.
var ErrCaptureFailed = errors.New("capture failed")

const (
	// Preview bounding box. The thumbnail fits within it; the full capture
	// is never mutated.
	PreviewMaxWidth  = 960
	PreviewMaxHeight = 540
)

type Result struct {
	PreviewPNG []byte
	Text       string
}

// Pipeline runs capture→OCR passes. Grab and Extract default to the real
// collaborators and are injectable for tests. Each call is independent:
// no caching, no deduplication of repeated captures.
type Pipeline struct {
	Grab    func(region screenshot.Region) (*image.RGBA, error)
	Extract func(imageData []byte, p ocr.Params) (string, error)
}

func New() *Pipeline {
	return &Pipeline{
		Grab:    screenshot.Grab,
		Extract: ocr.ExtractText,
	}
}

// RunOnce captures region, builds the preview, and OCRs the full capture.
func (p *Pipeline) RunOnce(region screenshot.Region, params ocr.Params) (Result, error) {
	if err := region.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	img, err := p.Grab(region)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	preview, err := encodePreview(img)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	full, err := screenshot.EncodePNG(img)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	text, err := p.Extract(full, params)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	return Result{PreviewPNG: preview, Text: text}, nil
}

// encodePreview returns a PNG thumbnail fitting the preview bounding box.
// Thumbnail copies; the source image is left untouched.
func encodePreview(img image.Image) ([]byte, error) {
	small := resize.Thumbnail(PreviewMaxWidth, PreviewMaxHeight, img, resize.Lanczos3)
	return screenshot.EncodePNG(small)
}
