// Package gosseract recognizes plate crops through the libtesseract binding.
package gosseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"plate-reader/internal/domain/reader"
)

type Options struct {
	Language    string
	PageSegMode int
	Whitelist   string
}

type Engine struct {
	opts Options
}

func New(opts Options) *Engine {
	if opts.PageSegMode <= 0 {
		opts.PageSegMode = int(gosseract.PSM_SINGLE_LINE)
	}
	return &Engine{opts: opts}
}

func (e *Engine) Name() string {
	return "gosseract"
}

// Recognize opens a client per call; gosseract clients are not safe to share
// across goroutines.
func (e *Engine) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if e.opts.Language != "" {
		if err := client.SetLanguage(e.opts.Language); err != nil {
			return "", fmt.Errorf("%w: set language: %v", reader.ErrOCRUnavailable, err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(e.opts.PageSegMode)); err != nil {
		return "", fmt.Errorf("%w: set page segmentation mode: %v", reader.ErrOCRUnavailable, err)
	}
	if e.opts.Whitelist != "" {
		if err := client.SetWhitelist(e.opts.Whitelist); err != nil {
			return "", fmt.Errorf("%w: set whitelist: %v", reader.ErrOCRUnavailable, err)
		}
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("%w: set image %s: %v", reader.ErrImageUnreadable, imagePath, err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", reader.ErrOCRUnavailable, err)
	}
	return text, nil
}
