// Package session runs one single-flight pass: capture → OCR → completion →
// dispatch, strictly in that order. Capture/OCR and completion failures fail
// the whole run; dispatch failures are per-sink outcomes, never errors.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Marianoooo45/ocr-qcm-ctk/dispatch"
	"github.com/Marianoooo45/ocr-qcm-ctk/llm"
	"github.com/Marianoooo45/ocr-qcm-ctk/ocr"
	"github.com/Marianoooo45/ocr-qcm-ctk/pipeline"
	"github.com/Marianoooo45/ocr-qcm-ctk/screenshot"
)

var ErrNoText = errors.New("no text extracted from capture")

type Options struct {
	Region      screenshot.Region
	OCR         ocr.Params
	Pipe        *pipeline.Pipeline
	Client      *llm.Client
	Prompt      string // template body
	Temperature float64
	Dispatcher  *dispatch.Dispatcher
	Sinks       []dispatch.Sink
	// AttachPreview sends the capture preview along with the webhook message.
	AttachPreview bool
}

type Result struct {
	PreviewPNG []byte
	OCRText    string
	Answer     string
	Outcomes   []dispatch.Outcome
}

// Execute performs one run. Errors are labelled with the stage that failed
// so the shell can show which part of the run broke.
func Execute(ctx context.Context, opts Options) (Result, error) {
	if opts.Pipe == nil {
		return Result{}, errors.New("pipeline is required")
	}
	if opts.Client == nil {
		return Result{}, errors.New("completion client is required")
	}

	capRes, err := opts.Pipe.RunOnce(opts.Region, opts.OCR)
	if err != nil {
		return Result{}, fmt.Errorf("capture/OCR: %w", err)
	}

	text := strings.TrimSpace(capRes.Text)
	if text == "" {
		return Result{PreviewPNG: capRes.PreviewPNG}, fmt.Errorf("capture/OCR: %w", ErrNoText)
	}

	answer, err := opts.Client.Complete(ctx, text, opts.Prompt, opts.Temperature)
	if err != nil {
		return Result{PreviewPNG: capRes.PreviewPNG, OCRText: text}, fmt.Errorf("completion: %w", err)
	}

	res := Result{PreviewPNG: capRes.PreviewPNG, OCRText: text, Answer: answer}
	if opts.Dispatcher != nil && len(opts.Sinks) > 0 {
		var preview []byte
		if opts.AttachPreview {
			preview = capRes.PreviewPNG
		}
		res.Outcomes = opts.Dispatcher.Dispatch(answer, text, preview, opts.Sinks)
	}
	return res, nil
}
