package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"plate-reader/internal/domain/reader"
	"plate-reader/internal/plate"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (PlateRun) TableName() string {
	return "plate_runs"
}

type PlateRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	SourceImage    string         `gorm:"not null"`
	Region         datatypes.JSON `gorm:"type:jsonb"`
	Candidates     int            `gorm:"not null"`
	CropPath       string         `gorm:"not null"`
	TextPath       string         `gorm:"not null"`
	CropURL        *string
	RawText        string `gorm:"not null"`
	CorrectedText  string `gorm:"not null"`
	CanonicalPlate string `gorm:"not null"`
	Layout         string `gorm:"not null"`
	Engine         string `gorm:"not null"`
	CreatedAt      time.Time
}

func (r *RunRepository) CreateRun(ctx context.Context, run *reader.Run) error {
	region, err := json.Marshal(run.Region)
	if err != nil {
		return fmt.Errorf("marshal region: %w", err)
	}

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	dbRun := PlateRun{
		ID:             run.ID,
		SourceImage:    run.SourceImage,
		Region:         datatypes.JSON(region),
		Candidates:     run.Candidates,
		CropPath:       run.CropPath,
		TextPath:       run.TextPath,
		RawText:        run.RawText,
		CorrectedText:  run.CorrectedText,
		CanonicalPlate: plate.Canonicalize(run.CorrectedText),
		Layout:         run.Layout,
		Engine:         run.Engine,
		CreatedAt:      run.CreatedAt,
	}
	if run.CropURL != "" {
		dbRun.CropURL = &run.CropURL
	}

	if err := r.db.WithContext(ctx).Create(&dbRun).Error; err != nil {
		return fmt.Errorf("failed to create plate run in database: %w", err)
	}
	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, id uuid.UUID) (*reader.Run, error) {
	var dbRun PlateRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dbRun).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, reader.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return dbRun.toDomain()
}

func (r *RunRepository) FindRuns(ctx context.Context, filter reader.RunFilter) ([]reader.Run, error) {
	query := r.db.WithContext(ctx).Model(&PlateRun{})

	if filter.Plate != "" {
		query = query.Where("canonical_plate = ?", filter.Plate)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	query = query.Order("created_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []PlateRun
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	runs := make([]reader.Run, 0, len(rows))
	for _, row := range rows {
		run, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func (r *RunRepository) DeleteOldRuns(ctx context.Context, days int) (int64, error) {
	cutoffTime := time.Now().AddDate(0, 0, -days)
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoffTime).
		Delete(&PlateRun{})

	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (p PlateRun) toDomain() (*reader.Run, error) {
	run := &reader.Run{
		ID:            p.ID,
		SourceImage:   p.SourceImage,
		Candidates:    p.Candidates,
		CropPath:      p.CropPath,
		TextPath:      p.TextPath,
		RawText:       p.RawText,
		CorrectedText: p.CorrectedText,
		Layout:        p.Layout,
		Engine:        p.Engine,
		CreatedAt:     p.CreatedAt,
	}
	if p.CropURL != nil {
		run.CropURL = *p.CropURL
	}
	if len(p.Region) > 0 {
		if err := json.Unmarshal(p.Region, &run.Region); err != nil {
			return nil, fmt.Errorf("decode region of run %s: %w", p.ID, err)
		}
	}
	return run, nil
}
