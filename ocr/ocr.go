// Package ocr wraps the Tesseract engine. Engine and segmentation modes are
// passed through opaquely; this package does not interpret them.
package ocr

import (
	"fmt"
	"strconv"

	"github.com/otiai10/gosseract/v2"
)

type Params struct {
	Language string // e.g. "fra", "eng"
	// EngineMode is the tesseract OEM, e.g. "3". Tesseract reads it at
	// engine init, so applying it to an already-initialized client may be
	// a no-op on some tesseract builds; the default OEM 3 is what the
	// setting asks for anyway.
	EngineMode  string
	PageSegMode string // tesseract PSM, e.g. "6"
	TessdataDir string // optional tessdata prefix
}

// ExtractText runs Tesseract over PNG image bytes and returns the raw
// extracted text. One client per call: the engine keeps per-image state.
func ExtractText(imageData []byte, p Params) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("empty image data")
	}

	client := gosseract.NewClient()
	defer client.Close()

	if p.TessdataDir != "" {
		if err := client.SetTessdataPrefix(p.TessdataDir); err != nil {
			return "", fmt.Errorf("set tessdata prefix: %v", err)
		}
	}
	if p.Language != "" {
		if err := client.SetLanguage(p.Language); err != nil {
			return "", fmt.Errorf("set language %q: %v", p.Language, err)
		}
	}
	if p.PageSegMode != "" {
		psm, err := strconv.Atoi(p.PageSegMode)
		if err != nil {
			return "", fmt.Errorf("invalid page segmentation mode %q: %v", p.PageSegMode, err)
		}
		if err := client.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
			return "", fmt.Errorf("set page segmentation mode: %v", err)
		}
	}
	if p.EngineMode != "" {
		if err := client.SetVariable(gosseract.SettableVariable("tessedit_ocr_engine_mode"), p.EngineMode); err != nil {
			return "", fmt.Errorf("set engine mode: %v", err)
		}
	}

	if err := client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("set image: %v", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("text extraction failed: %v", err)
	}
	return text, nil
}
