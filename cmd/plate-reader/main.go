package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"

	"plate-reader/internal/config"
	"plate-reader/internal/domain/reader"
	"plate-reader/internal/imagesource"
	"plate-reader/internal/logger"
	"plate-reader/internal/plate"
	"plate-reader/internal/service"
)

type scanCmd struct {
	Image  string `arg:"positional" help:"image path; omit to pick from the images directory"`
	Layout string `arg:"--layout" help:"plate layout name"`
}

type correctCmd struct {
	Text   []string `arg:"positional,required" help:"OCR text to correct"`
	Layout string   `arg:"--layout" help:"plate layout name"`
}

type serveCmd struct{}

type exportCmd struct {
	Out   string `arg:"--out" default:"runs.xlsx" help:"output workbook path"`
	Plate string `arg:"--plate" help:"only runs for this plate"`
	From  string `arg:"--from" help:"RFC3339 lower bound"`
	To    string `arg:"--to" help:"RFC3339 upper bound"`
	Limit int    `arg:"--limit" default:"100"`
}

type tokenCmd struct {
	Subject string `arg:"--subject,required"`
	Role    string `arg:"--role" default:"ADMIN"`
	TTL     string `arg:"--ttl" default:"24h"`
}

type args struct {
	Scan    *scanCmd    `arg:"subcommand:scan" help:"detect and read a plate (default)"`
	Correct *correctCmd `arg:"subcommand:correct" help:"apply look-alike correction to text"`
	Serve   *serveCmd   `arg:"subcommand:serve" help:"run the HTTP API"`
	Export  *exportCmd  `arg:"subcommand:export" help:"export run history to XLSX"`
	Token   *tokenCmd   `arg:"subcommand:token" help:"issue an API access token"`
}

func (args) Description() string {
	return "plate-reader finds a licence plate in a photo, reads it with OCR and fixes look-alike characters."
}

func main() {
	var a args
	arg.MustParse(&a)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)
	ctx := context.Background()

	switch {
	case a.Correct != nil:
		err = runCorrect(cfg, appLogger, a.Correct)
	case a.Serve != nil:
		err = runServe(cfg, appLogger)
	case a.Export != nil:
		err = runExport(ctx, cfg, appLogger, a.Export)
	case a.Token != nil:
		err = runToken(cfg, a.Token)
	default:
		cmd := a.Scan
		if cmd == nil {
			cmd = &scanCmd{}
		}
		err = runScan(ctx, cfg, appLogger, cmd)
	}

	if err != nil {
		appLogger.Debug().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runScan(ctx context.Context, cfg *config.Config, log zerolog.Logger, cmd *scanCmd) error {
	imagePath := cmd.Image
	if imagePath == "" {
		names, err := imagesource.List(cfg.Input.ImagesDir)
		if err != nil {
			return err
		}
		imagesource.PrintMenu(os.Stdout, names)
		name, err := imagesource.Choose(os.Stdin, os.Stdout, names)
		if err != nil {
			return err
		}
		imagePath = imagesource.Path(cfg.Input.ImagesDir, name)
	}

	layouts, err := loadLayouts(cfg)
	if err != nil {
		return err
	}

	app, err := build(cfg, log, layouts, buildOptions{
		scanner:        scannerRequired,
		connectHistory: true,
		onCropSaved: func(path string) {
			fmt.Printf("Cropped plate saved as: %s\n", path)
		},
	})
	if err != nil {
		return err
	}
	defer app.Close()

	run, err := app.service.Scan(ctx, imagePath, cmd.Layout)
	if errors.Is(err, reader.ErrNoPlate) {
		fmt.Println("No plates detected.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Detected Plate Text: %s\n", run.CorrectedText)
	return nil
}

func runCorrect(cfg *config.Config, log zerolog.Logger, cmd *correctCmd) error {
	layouts, err := loadLayouts(cfg)
	if err != nil {
		return err
	}

	app, err := build(cfg, log, layouts, buildOptions{scanner: scannerOff})
	if err != nil {
		return err
	}
	defer app.Close()

	for _, text := range cmd.Text {
		res, err := app.service.Correct(text, cmd.Layout)
		if err != nil {
			return err
		}
		fmt.Println(res.Corrected)
	}
	return nil
}

func runExport(ctx context.Context, cfg *config.Config, log zerolog.Logger, cmd *exportCmd) error {
	if !cfg.HistoryEnabled() {
		return fmt.Errorf("%w: set DB_DSN to export runs", reader.ErrHistoryDisabled)
	}

	app, err := build(cfg, log, plate.NewRegistry(cfg.Layout.Default), buildOptions{
		scanner:        scannerOff,
		connectHistory: true,
		requireHistory: true,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	filter, err := buildExportFilter(cmd)
	if err != nil {
		return err
	}

	f, err := os.Create(cmd.Out)
	if err != nil {
		return fmt.Errorf("create %s: %w", cmd.Out, err)
	}
	defer f.Close()

	count, err := app.service.ExportRuns(ctx, f, filter)
	if err != nil {
		return err
	}

	log.Info().Int("runs", count).Str("out", cmd.Out).Msg("runs exported")
	return nil
}

func buildExportFilter(cmd *exportCmd) (reader.RunFilter, error) {
	from, to := strings.TrimSpace(cmd.From), strings.TrimSpace(cmd.To)
	return service.BuildFilter(cmd.Plate, &from, &to, cmd.Limit, 0)
}
