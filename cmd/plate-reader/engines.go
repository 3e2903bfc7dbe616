package main

import (
	"fmt"
	"strings"

	"plate-reader/internal/config"
	"plate-reader/internal/domain/reader"
	"plate-reader/internal/ocr/gosseract"
	"plate-reader/internal/ocr/tesseract"
	"plate-reader/internal/service"
)

// newEngine picks the OCR backend named by OCR_ENGINE.
func newEngine(cfg config.OCRConfig) (service.OCREngine, error) {
	switch strings.ToLower(cfg.Engine) {
	case "", "tesseract":
		return tesseract.New(tesseract.Options{
			Binary:      cfg.TesseractBin,
			Language:    cfg.Language,
			PageSegMode: cfg.PageSegMode,
			Whitelist:   cfg.Whitelist,
		})
	case "gosseract":
		return gosseract.New(gosseract.Options{
			Language:    cfg.Language,
			PageSegMode: cfg.PageSegMode,
			Whitelist:   cfg.Whitelist,
		}), nil
	}
	return nil, fmt.Errorf("%w: unknown OCR engine %q", reader.ErrOCRUnavailable, cfg.Engine)
}
