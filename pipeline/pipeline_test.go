package pipeline

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/Marianoooo45/ocr-qcm-ctk/ocr"
	"github.com/Marianoooo45/ocr-qcm-ctk/screenshot"
)

func stubImage(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestRunOnceRejectsBadRegion(t *testing.T) {
	p := &Pipeline{
		Grab: func(screenshot.Region) (*image.RGBA, error) {
			t.Error("Grab must not be called for an invalid region")
			return nil, nil
		},
		Extract: func([]byte, ocr.Params) (string, error) { return "", nil },
	}

	for _, region := range []screenshot.Region{
		{Width: 0, Height: 100},
		{Width: 100, Height: 0},
		{Width: -5, Height: 100},
	} {
		if _, err := p.RunOnce(region, ocr.Params{}); !errors.Is(err, ErrCaptureFailed) {
			t.Errorf("Region %+v: expected ErrCaptureFailed, got %v", region, err)
		}
	}
}

func TestRunOnceGrabFailure(t *testing.T) {
	p := &Pipeline{
		Grab: func(screenshot.Region) (*image.RGBA, error) {
			return nil, errors.New("display gone")
		},
		Extract: func([]byte, ocr.Params) (string, error) {
			t.Error("Extract must not run after a failed grab")
			return "", nil
		},
	}

	_, err := p.RunOnce(screenshot.Region{Width: 10, Height: 10}, ocr.Params{})
	if !errors.Is(err, ErrCaptureFailed) {
		t.Errorf("Expected ErrCaptureFailed, got %v", err)
	}
}

func TestRunOnceOCRFailureDiscardsPreview(t *testing.T) {
	p := &Pipeline{
		Grab: func(screenshot.Region) (*image.RGBA, error) { return stubImage(100, 50), nil },
		Extract: func([]byte, ocr.Params) (string, error) {
			return "", errors.New("tesseract missing")
		},
	}

	res, err := p.RunOnce(screenshot.Region{Width: 100, Height: 50}, ocr.Params{})
	if !errors.Is(err, ErrCaptureFailed) {
		t.Errorf("Expected ErrCaptureFailed, got %v", err)
	}
	if res.PreviewPNG != nil {
		t.Error("Expected no partial result on OCR failure")
	}
}

func TestRunOnceOCRSeesFullResolution(t *testing.T) {
	var ocrInput []byte
	p := &Pipeline{
		Grab: func(screenshot.Region) (*image.RGBA, error) { return stubImage(2000, 1200), nil },
		Extract: func(data []byte, _ ocr.Params) (string, error) {
			ocrInput = data
			return "A) 3  B) 4", nil
		},
	}

	res, err := p.RunOnce(screenshot.Region{Width: 2000, Height: 1200}, ocr.Params{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "A) 3  B) 4" {
		t.Errorf("Unexpected text %q", res.Text)
	}

	// OCR must see the full capture, not the preview.
	full, err := png.Decode(bytes.NewReader(ocrInput))
	if err != nil {
		t.Fatal(err)
	}
	if b := full.Bounds(); b.Dx() != 2000 || b.Dy() != 1200 {
		t.Errorf("Expected OCR input at 2000x1200, got %dx%d", b.Dx(), b.Dy())
	}

	// The preview fits the bounding box with aspect ratio preserved.
	preview, err := png.Decode(bytes.NewReader(res.PreviewPNG))
	if err != nil {
		t.Fatal(err)
	}
	if b := preview.Bounds(); b.Dx() > PreviewMaxWidth || b.Dy() > PreviewMaxHeight {
		t.Errorf("Preview %dx%d exceeds %dx%d", b.Dx(), b.Dy(), PreviewMaxWidth, PreviewMaxHeight)
	}
}

func TestRunOnceSmallCapturePreviewNotUpscaled(t *testing.T) {
	p := &Pipeline{
		Grab:    func(screenshot.Region) (*image.RGBA, error) { return stubImage(100, 50), nil },
		Extract: func([]byte, ocr.Params) (string, error) { return "text", nil },
	}

	res, err := p.RunOnce(screenshot.Region{Width: 100, Height: 50}, ocr.Params{})
	if err != nil {
		t.Fatal(err)
	}
	preview, err := png.Decode(bytes.NewReader(res.PreviewPNG))
	if err != nil {
		t.Fatal(err)
	}
	if b := preview.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("Expected the small capture untouched, got %dx%d", b.Dx(), b.Dy())
	}
}
