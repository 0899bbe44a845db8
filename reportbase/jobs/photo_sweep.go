package jobs

import (
	"construction_reports/reportbase/schema"
	"construction_reports/reportbase/storage"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/caarlos0/env/v10"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

type PhotoSweepConfig struct {
	Schedule string `env:"PHOTO_SWEEP_SCHEDULE" envDefault:"@hourly"`
}

// PhotoSweeper reconciles the photo store with the database. Report rows
// are deleted inside transactions but their files are removed afterwards,
// and uploads write the file before the row, so a crash between the two
// can leave directories or individual files behind. The sweep removes any
// report directory whose report no longer exists, and within live report
// directories any file no photo row points at.
type PhotoSweeper struct {
	db      *gorm.DB
	storage storage.Storage
	cron    *cron.Cron
}

func NewPhotoSweeper(db *gorm.DB, store storage.Storage) *PhotoSweeper {
	return &PhotoSweeper{db: db, storage: store, cron: cron.New()}
}

func (s *PhotoSweeper) Start() error {
	var cfg PhotoSweepConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("error parsing photo sweep config: %w", err)
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, func() {
		if err := s.Sweep(); err != nil {
			slog.Error("photo sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("error scheduling photo sweep '%v': %w", cfg.Schedule, err)
	}

	s.cron.Start()
	slog.Info("photo sweep scheduled", "schedule", cfg.Schedule)
	return nil
}

func (s *PhotoSweeper) Stop() {
	s.cron.Stop()
}

func (s *PhotoSweeper) Sweep() error {
	exists, err := s.storage.Exists(storage.ReportsDir())
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	entries, err := s.storage.List(storage.ReportsDir())
	if err != nil {
		return err
	}

	storedIds := make([]int64, 0, len(entries))
	for _, entry := range entries {
		reportId, err := strconv.ParseInt(entry, 10, 64)
		if err != nil {
			slog.Warn("skipping unrecognized entry in report store", "entry", entry)
			continue
		}
		storedIds = append(storedIds, reportId)
	}

	if len(storedIds) == 0 {
		return nil
	}

	var liveIds []int64
	result := s.db.Model(&schema.Report{}).Where("id IN ?", storedIds).Pluck("id", &liveIds)
	if result.Error != nil {
		slog.Error("sql error listing reports during photo sweep", "error", result.Error)
		return schema.ErrDbAccessFailed
	}

	removedDirs, removedFiles := 0, 0
	for _, reportId := range storedIds {
		if !slices.Contains(liveIds, reportId) {
			if err := s.storage.Delete(storage.ReportPath(reportId)); err != nil {
				slog.Error("error deleting orphaned report directory", "report_id", reportId, "error", err)
				continue
			}
			removedDirs++
			continue
		}

		n, err := s.sweepReportFiles(reportId)
		if err != nil {
			slog.Error("error sweeping photo files for report", "report_id", reportId, "error", err)
			continue
		}
		removedFiles += n
	}

	if removedDirs > 0 || removedFiles > 0 {
		slog.Info("photo sweep removed orphaned entries", "directories", removedDirs, "files", removedFiles)
	}
	return nil
}

// sweepReportFiles removes files in a live report's photo directory that no
// photo row references, which happens if an upload crashes after writing
// the file but before recording it.
func (s *PhotoSweeper) sweepReportFiles(reportId int64) (int, error) {
	dir := storage.ReportPhotoDir(reportId)
	exists, err := s.storage.Exists(dir)
	if err != nil || !exists {
		return 0, err
	}

	files, err := s.storage.List(dir)
	if err != nil {
		return 0, err
	}

	var knownPaths []string
	result := s.db.Model(&schema.ReportPhoto{}).Where("report_id = ?", reportId).Pluck("file_path", &knownPaths)
	if result.Error != nil {
		slog.Error("sql error listing photo rows during photo sweep", "report_id", reportId, "error", result.Error)
		return 0, schema.ErrDbAccessFailed
	}

	removed := 0
	for _, name := range files {
		path := storage.ReportPhotoPath(reportId, name)
		if slices.Contains(knownPaths, path) {
			continue
		}
		if err := s.storage.Delete(path); err != nil {
			slog.Error("error deleting orphaned photo file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
