package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"plate-reader/internal/config"
	"plate-reader/internal/db"
	"plate-reader/internal/plate"
	"plate-reader/internal/repository"
	"plate-reader/internal/service"
	"plate-reader/internal/storage"
	"plate-reader/internal/vision"
)

type scannerMode int

const (
	scannerOff scannerMode = iota
	scannerOptional
	scannerRequired
)

type buildOptions struct {
	scanner        scannerMode
	connectHistory bool
	requireHistory bool
	onCropSaved    func(path string)
}

type components struct {
	service  *service.ReaderService
	database *gorm.DB
	closers  []func() error
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

// loadLayouts builds the registry, reading PLATE_LAYOUT_FILE when set.
func loadLayouts(cfg *config.Config) (*plate.Registry, error) {
	registry := plate.NewRegistry(cfg.Layout.Default)
	if cfg.Layout.File != "" {
		if err := registry.LoadFile(cfg.Layout.File); err != nil {
			return nil, err
		}
	}
	if _, err := registry.Get(""); err != nil {
		return nil, fmt.Errorf("default layout: %w", err)
	}
	return registry, nil
}

func build(cfg *config.Config, log zerolog.Logger, layouts *plate.Registry, opts buildOptions) (*components, error) {
	c := &components{}
	deps := service.Deps{Layouts: layouts, OnCropSaved: opts.onCropSaved}

	if opts.scanner != scannerOff {
		if err := addScanner(cfg, log, &deps, c); err != nil {
			if opts.scanner == scannerRequired {
				c.Close()
				return nil, err
			}
			log.Warn().Err(err).Msg("plate scanning disabled")
			deps.Finder, deps.Engine = nil, nil
		}
	}

	if opts.connectHistory && cfg.HistoryEnabled() {
		database, err := db.New(cfg, log)
		if err != nil {
			if opts.requireHistory {
				c.Close()
				return nil, fmt.Errorf("connect database: %w", err)
			}
			log.Warn().Err(err).Msg("run history unavailable, runs will not be persisted")
		} else {
			c.database = database
			deps.Store = repository.NewRunRepository(database)
			if sqlDB, err := database.DB(); err == nil {
				c.closers = append(c.closers, sqlDB.Close)
			}
		}
	} else if !cfg.HistoryEnabled() {
		log.Debug().Msg("DB_DSN not set, run history disabled")
	}

	r2Client, err := storage.NewR2Client(cfg.R2)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		log.Debug().Msg("R2 storage not configured, crop uploads disabled")
	case err != nil:
		log.Warn().Err(err).Msg("failed to initialize R2 client, crop uploads disabled")
	default:
		deps.Uploader = r2Client
	}

	c.service = service.NewReaderService(deps, log)
	return c, nil
}

func addScanner(cfg *config.Config, log zerolog.Logger, deps *service.Deps, c *components) error {
	detector, err := vision.NewCascadeDetector(cfg.Detector.CascadePath, vision.Params{
		ScaleFactor:  cfg.Detector.ScaleFactor,
		MinNeighbors: cfg.Detector.MinNeighbors,
		MinSize:      cfg.Detector.MinSize,
	})
	if err != nil {
		return err
	}
	c.closers = append(c.closers, detector.Close)

	engine, err := newEngine(cfg.OCR)
	if err != nil {
		return err
	}

	deps.Finder = detector
	deps.Engine = engine
	deps.Local = storage.NewLocal(cfg.Input.DataDir, cfg.OCR.CropMinHeight)

	log.Debug().
		Str("cascade", cfg.Detector.CascadePath).
		Str("engine", engine.Name()).
		Str("data_dir", cfg.Input.DataDir).
		Msg("scanner ready")
	return nil
}
