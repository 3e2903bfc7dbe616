package storage

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// RunDir is the per-run output folder: <data>/<unix-ts>/ holding
// cropped_<ts>.png and output_<ts>.txt.
type RunDir struct {
	Path      string
	Stamp     string
	CropPath  string
	TextPath  string
	CreatedAt time.Time
}

type Local struct {
	root          string
	cropMinHeight int
	now           func() time.Time
}

// NewLocal writes runs under root. Crops shorter than cropMinHeight pixels are
// upscaled before saving; zero keeps them at native size.
func NewLocal(root string, cropMinHeight int) *Local {
	return &Local{root: root, cropMinHeight: cropMinHeight, now: time.Now}
}

// NewRun creates a fresh run folder. Two runs in the same second get a short
// random suffix so neither overwrites the other.
func (l *Local) NewRun() (*RunDir, error) {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", l.root, err)
	}

	now := l.now()
	stamp := strconv.FormatInt(now.Unix(), 10)
	dir := filepath.Join(l.root, stamp)

	err := os.Mkdir(dir, 0o755)
	if errors.Is(err, os.ErrExist) {
		stamp = stamp + "_" + uuid.NewString()[:8]
		dir = filepath.Join(l.root, stamp)
		err = os.Mkdir(dir, 0o755)
	}
	if err != nil {
		return nil, fmt.Errorf("create run dir %s: %w", dir, err)
	}

	return &RunDir{
		Path:      dir,
		Stamp:     stamp,
		CropPath:  filepath.Join(dir, "cropped_"+stamp+".png"),
		TextPath:  filepath.Join(dir, "output_"+stamp+".txt"),
		CreatedAt: now,
	}, nil
}

// SaveCrop writes the plate crop as PNG.
func (l *Local) SaveCrop(run *RunDir, img image.Image) error {
	if l.cropMinHeight > 0 && img.Bounds().Dy() < l.cropMinHeight {
		img = imaging.Resize(img, 0, l.cropMinHeight, imaging.Lanczos)
	}
	if err := imaging.Save(img, run.CropPath); err != nil {
		return fmt.Errorf("save crop %s: %w", run.CropPath, err)
	}
	return nil
}

// WriteText replaces the run's text file with text.
func (l *Local) WriteText(run *RunDir, text string) error {
	if err := os.WriteFile(run.TextPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write text %s: %w", run.TextPath, err)
	}
	return nil
}
