package jobs

import (
	"bytes"
	"construction_reports/reportbase/schema"
	"construction_reports/reportbase/storage"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSweepEnv(t *testing.T) (*gorm.DB, storage.Storage) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(schema.AllModels()...); err != nil {
		t.Fatal(err)
	}

	return db, storage.NewSharedDisk(t.TempDir())
}

func addPhotoFile(t *testing.T, store storage.Storage, reportId int64) string {
	path := storage.ReportPhotoPath(reportId, "a.jpg")
	if err := store.Write(path, bytes.NewReader([]byte("img"))); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSweepRemovesOrphanedDirectories(t *testing.T) {
	db, store := setupSweepEnv(t)

	object := schema.Object{Name: "site"}
	if err := db.Create(&object).Error; err != nil {
		t.Fatal(err)
	}
	live := schema.Report{ObjectId: object.Id, Shift: schema.MorningShift, WorkCategory: "work", Status: schema.StatusDraft}
	if err := db.Create(&live).Error; err != nil {
		t.Fatal(err)
	}

	livePath := addPhotoFile(t, store, live.Id)
	photo := schema.ReportPhoto{ReportId: live.Id, FilePath: livePath}
	if err := db.Create(&photo).Error; err != nil {
		t.Fatal(err)
	}

	addPhotoFile(t, store, live.Id+100)

	sweeper := NewPhotoSweeper(db, store)
	if err := sweeper.Sweep(); err != nil {
		t.Fatal(err)
	}

	exists, err := store.Exists(livePath)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("files for live reports must survive the sweep")
	}

	exists, err = store.Exists(storage.ReportPath(live.Id + 100))
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("orphaned report directory should be removed")
	}
}

func TestSweepRemovesUnrecordedFiles(t *testing.T) {
	db, store := setupSweepEnv(t)

	object := schema.Object{Name: "site"}
	if err := db.Create(&object).Error; err != nil {
		t.Fatal(err)
	}
	report := schema.Report{ObjectId: object.Id, Shift: schema.MorningShift, WorkCategory: "work", Status: schema.StatusDraft}
	if err := db.Create(&report).Error; err != nil {
		t.Fatal(err)
	}

	// one file with a photo row, one written but never recorded
	recordedPath := addPhotoFile(t, store, report.Id)
	photo := schema.ReportPhoto{ReportId: report.Id, FilePath: recordedPath}
	if err := db.Create(&photo).Error; err != nil {
		t.Fatal(err)
	}

	strayPath := storage.ReportPhotoPath(report.Id, "stray.jpg")
	if err := store.Write(strayPath, bytes.NewReader([]byte("img"))); err != nil {
		t.Fatal(err)
	}

	sweeper := NewPhotoSweeper(db, store)
	if err := sweeper.Sweep(); err != nil {
		t.Fatal(err)
	}

	exists, err := store.Exists(recordedPath)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("recorded photo files must survive the sweep")
	}

	exists, err = store.Exists(strayPath)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("files with no photo row should be removed")
	}
}

func TestSweepOnEmptyStore(t *testing.T) {
	db, store := setupSweepEnv(t)

	sweeper := NewPhotoSweeper(db, store)
	if err := sweeper.Sweep(); err != nil {
		t.Fatal(err)
	}
}
