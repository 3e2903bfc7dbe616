// Package tesseract runs the tesseract executable on a plate crop.
package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"plate-reader/internal/domain/reader"
)

type Options struct {
	Binary      string
	Language    string
	PageSegMode int
	Whitelist   string
}

type Engine struct {
	bin  string
	opts Options
}

// New resolves the binary on PATH so a missing install fails at startup.
func New(opts Options) (*Engine, error) {
	if opts.Binary == "" {
		opts.Binary = "tesseract"
	}
	bin, err := exec.LookPath(opts.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", reader.ErrOCRUnavailable, opts.Binary, err)
	}
	return &Engine{bin: bin, opts: opts}, nil
}

func (e *Engine) Name() string {
	return "tesseract"
}

// Recognize returns the text tesseract writes for the image, unmodified.
func (e *Engine) Recognize(ctx context.Context, imagePath string) (string, error) {
	dir, err := os.MkdirTemp("", "plate-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create ocr temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	outBase := filepath.Join(dir, "output")
	cmd := exec.CommandContext(ctx, e.bin, e.args(imagePath, outBase)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v: %s", reader.ErrOCRUnavailable, err, bytes.TrimSpace(stderr.Bytes()))
	}

	text, err := os.ReadFile(outBase + ".txt")
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s.txt", reader.ErrOCROutputMissing, outBase)
	}
	if err != nil {
		return "", fmt.Errorf("read ocr output: %w", err)
	}
	return string(text), nil
}

func (e *Engine) args(imagePath, outBase string) []string {
	args := []string{imagePath, outBase}
	if e.opts.Language != "" {
		args = append(args, "-l", e.opts.Language)
	}
	if e.opts.PageSegMode > 0 {
		args = append(args, "--psm", strconv.Itoa(e.opts.PageSegMode))
	}
	if e.opts.Whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+e.opts.Whitelist)
	}
	return args
}
