package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"plate-reader/internal/domain/reader"
	"plate-reader/internal/plate"
	"plate-reader/internal/storage"
)

type PlateFinder interface {
	FindPlate(imagePath string) (*reader.Crop, error)
}

type OCREngine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (string, error)
}

type RunStore interface {
	CreateRun(ctx context.Context, run *reader.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*reader.Run, error)
	FindRuns(ctx context.Context, filter reader.RunFilter) ([]reader.Run, error)
	DeleteOldRuns(ctx context.Context, days int) (int64, error)
}

type CropUploader interface {
	UploadFile(ctx context.Context, runStamp, filePath string) (string, error)
}

// Deps are the collaborators of ReaderService. Finder and Engine may be nil
// for a correction-only service; Store and Uploader are optional.
//
// OnCropSaved, when set, is called with the crop path as soon as the crop is
// on disk, before OCR runs.
type Deps struct {
	Finder      PlateFinder
	Engine      OCREngine
	Local       *storage.Local
	Store       RunStore
	Uploader    CropUploader
	Layouts     *plate.Registry
	OnCropSaved func(path string)
}

type ReaderService struct {
	finder   PlateFinder
	engine   OCREngine
	local    *storage.Local
	store    RunStore
	uploader CropUploader
	layouts  *plate.Registry
	onCrop   func(path string)
	log      zerolog.Logger
}

func NewReaderService(deps Deps, log zerolog.Logger) *ReaderService {
	layouts := deps.Layouts
	if layouts == nil {
		layouts = plate.NewRegistry("")
	}
	return &ReaderService{
		finder:   deps.Finder,
		engine:   deps.Engine,
		local:    deps.Local,
		store:    deps.Store,
		uploader: deps.Uploader,
		layouts:  layouts,
		onCrop:   deps.OnCropSaved,
		log:      log,
	}
}

// Scan runs detect, crop, OCR and correction over one image and saves the
// crop and corrected text into a new run folder.
func (s *ReaderService) Scan(ctx context.Context, imagePath, layoutName string) (*reader.Run, error) {
	if s.finder == nil || s.engine == nil || s.local == nil {
		return nil, fmt.Errorf("%w: scanning is not configured", reader.ErrDetectorUnavailable)
	}

	layout, err := s.layouts.Get(layoutName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reader.ErrInvalidInput, err)
	}

	crop, err := s.finder.FindPlate(imagePath)
	if err != nil {
		s.log.Debug().Err(err).Str("image", imagePath).Msg("plate detection returned no crop")
		return nil, fmt.Errorf("detect plate in %s: %w", imagePath, err)
	}

	s.log.Debug().
		Str("image", imagePath).
		Int("candidates", crop.Candidates).
		Str("region", crop.Region.String()).
		Msg("plate region detected")

	runDir, err := s.local.NewRun()
	if err != nil {
		return nil, err
	}
	if err := s.local.SaveCrop(runDir, crop.Image); err != nil {
		return nil, err
	}
	if s.onCrop != nil {
		s.onCrop(runDir.CropPath)
	}

	raw, err := s.engine.Recognize(ctx, runDir.CropPath)
	if err != nil {
		s.log.Error().Err(err).Str("crop", runDir.CropPath).Str("engine", s.engine.Name()).Msg("ocr failed")
		return nil, fmt.Errorf("recognize %s: %w", runDir.CropPath, err)
	}

	corrected := layout.Correct(raw)
	if err := s.local.WriteText(runDir, corrected); err != nil {
		return nil, err
	}

	run := &reader.Run{
		ID:            uuid.New(),
		SourceImage:   filepath.Base(imagePath),
		Region:        reader.RegionOf(crop.Region),
		Candidates:    crop.Candidates,
		CropPath:      runDir.CropPath,
		TextPath:      runDir.TextPath,
		RawText:       raw,
		CorrectedText: corrected,
		Layout:        layout.Name,
		Engine:        s.engine.Name(),
		CreatedAt:     runDir.CreatedAt,
	}

	if s.uploader != nil {
		url, err := s.uploader.UploadFile(ctx, runDir.Stamp, runDir.CropPath)
		if err != nil {
			s.log.Warn().Err(err).Str("crop", runDir.CropPath).Msg("crop upload failed")
		} else {
			run.CropURL = url
		}
	}

	if s.store != nil {
		if err := s.store.CreateRun(ctx, run); err != nil {
			s.log.Error().Err(err).Str("run_id", run.ID.String()).Msg("failed to save plate run to history")
		}
	}

	s.log.Info().
		Str("run_id", run.ID.String()).
		Str("image", run.SourceImage).
		Str("raw", strings.TrimSpace(raw)).
		Str("corrected", strings.TrimSpace(corrected)).
		Str("layout", layout.Name).
		Msg("plate read")

	return run, nil
}

// Correct applies the named layout (or the default) to text.
func (s *ReaderService) Correct(text, layoutName string) (*reader.CorrectionResult, error) {
	layout, err := s.layouts.Get(layoutName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reader.ErrInvalidInput, err)
	}
	return &reader.CorrectionResult{
		Raw:       text,
		Corrected: layout.Correct(text),
		Layout:    layout.Name,
	}, nil
}

func (s *ReaderService) Layouts() []string {
	return s.layouts.Names()
}

func (s *ReaderService) DefaultLayout() string {
	return s.layouts.DefaultName()
}

func (s *ReaderService) HistoryEnabled() bool {
	return s.store != nil
}

// BuildFilter parses query parameters into a RunFilter, clamping paging.
func BuildFilter(plateQuery string, from, to *string, limit, offset int) (reader.RunFilter, error) {
	filter := reader.RunFilter{Plate: plate.Canonicalize(plateQuery)}

	if from != nil && *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid from time format", reader.ErrInvalidInput)
		}
		filter.From = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid to time format", reader.ErrInvalidInput)
		}
		filter.To = &t
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	filter.Limit = limit
	filter.Offset = offset

	return filter, nil
}

func (s *ReaderService) FindRuns(ctx context.Context, filter reader.RunFilter) ([]reader.Run, error) {
	if s.store == nil {
		return nil, reader.ErrHistoryDisabled
	}
	runs, err := s.store.FindRuns(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find runs: %w", err)
	}
	return runs, nil
}

func (s *ReaderService) GetRun(ctx context.Context, id string) (*reader.Run, error) {
	if s.store == nil {
		return nil, reader.ErrHistoryDisabled
	}
	runID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid run id", reader.ErrInvalidInput)
	}
	return s.store.GetRun(ctx, runID)
}

// CleanupOldRuns removes history rows older than days.
func (s *ReaderService) CleanupOldRuns(ctx context.Context, days int) (int64, error) {
	if s.store == nil {
		return 0, reader.ErrHistoryDisabled
	}
	if days <= 0 {
		return 0, fmt.Errorf("%w: days must be positive", reader.ErrInvalidInput)
	}
	deleted, err := s.store.DeleteOldRuns(ctx, days)
	if err != nil {
		s.log.Error().Err(err).Int("days", days).Msg("failed to cleanup old runs")
		return 0, err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted_count", deleted).Int("days", days).Msg("cleaned up old runs")
	}
	return deleted, nil
}
