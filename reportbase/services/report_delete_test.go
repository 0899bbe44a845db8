package services

import (
	"construction_reports/reportbase/schema"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDb(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(schema.AllModels()...); err != nil {
		t.Fatal(err)
	}
	return db
}

func seedReport(t *testing.T, db *gorm.DB) int64 {
	object := schema.Object{Name: "site"}
	if err := db.Create(&object).Error; err != nil {
		t.Fatal(err)
	}
	itr := schema.Itr{FullName: "Ivanov I.I."}
	if err := db.Create(&itr).Error; err != nil {
		t.Fatal(err)
	}
	worker := schema.Worker{FullName: "Smirnov A.A.", Position: "mason"}
	if err := db.Create(&worker).Error; err != nil {
		t.Fatal(err)
	}
	equipment := schema.Equipment{Name: "crane"}
	if err := db.Create(&equipment).Error; err != nil {
		t.Fatal(err)
	}

	report := schema.Report{ObjectId: object.Id, Shift: schema.MorningShift, WorkCategory: "work", Status: schema.StatusDraft}
	if err := db.Create(&report).Error; err != nil {
		t.Fatal(err)
	}

	for _, row := range []interface{}{
		&schema.ReportItr{ReportId: report.Id, ItrId: itr.Id},
		&schema.ReportWorker{ReportId: report.Id, WorkerId: worker.Id},
		&schema.ReportEquipment{ReportId: report.Id, EquipmentId: equipment.Id, Quantity: 2},
		&schema.ReportPhoto{ReportId: report.Id, FilePath: "reports/1/photos/a.jpg"},
	} {
		if err := db.Create(row).Error; err != nil {
			t.Fatal(err)
		}
	}

	return report.Id
}

func reportRowCounts(t *testing.T, db *gorm.DB, reportId int64) map[string]int64 {
	counts := make(map[string]int64)
	for name, model := range map[string]interface{}{
		"report_itr":       &schema.ReportItr{},
		"report_workers":   &schema.ReportWorker{},
		"report_equipment": &schema.ReportEquipment{},
		"report_photos":    &schema.ReportPhoto{},
	} {
		var n int64
		if err := db.Model(model).Where("report_id = ?", reportId).Count(&n).Error; err != nil {
			t.Fatal(err)
		}
		counts[name] = n
	}

	var n int64
	if err := db.Model(&schema.Report{}).Where("id = ?", reportId).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	counts["reports"] = n

	return counts
}

func TestDeleteReportRowsRollsBackOnFailure(t *testing.T) {
	db := setupDb(t)
	reportId := seedReport(t, db)

	before := reportRowCounts(t, db, reportId)
	for name, n := range before {
		if n == 0 {
			t.Fatalf("seed left table %v empty", name)
		}
	}

	// a failure after the cascade must undo every row it removed
	errInjected := errors.New("injected failure")
	err := db.Transaction(func(txn *gorm.DB) error {
		if err := deleteReportRows(txn, []int64{reportId}); err != nil {
			return err
		}
		return errInjected
	})
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}

	after := reportRowCounts(t, db, reportId)
	for name, n := range before {
		if after[name] != n {
			t.Fatalf("table %v not restored after rollback: had %d rows, now %d", name, n, after[name])
		}
	}

	// and without the failure the same cascade removes everything
	err = db.Transaction(func(txn *gorm.DB) error {
		return deleteReportRows(txn, []int64{reportId})
	})
	if err != nil {
		t.Fatal(err)
	}
	for name, n := range reportRowCounts(t, db, reportId) {
		if n != 0 {
			t.Fatalf("table %v should be empty after delete, found %d rows", name, n)
		}
	}
}

func TestRecordPhotoRechecksDraft(t *testing.T) {
	db := setupDb(t)
	reportId := seedReport(t, db)

	s := &ReportService{db: db}

	photoId, err := s.recordPhoto(reportId, "reports/1/photos/b.jpg", nil)
	if err != nil {
		t.Fatal(err)
	}
	if photoId == 0 {
		t.Fatal("recorded photo should have an id")
	}

	// a sent report no longer accepts rows
	if err := db.Model(&schema.Report{}).Where("id = ?", reportId).Update("status", schema.StatusSent).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := s.recordPhoto(reportId, "reports/1/photos/c.jpg", nil); err == nil {
		t.Fatal("recordPhoto should fail for a sent report")
	}

	// neither does a deleted one, even though the upfront guard already passed
	err = db.Transaction(func(txn *gorm.DB) error {
		return deleteReportRows(txn, []int64{reportId})
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.recordPhoto(reportId, "reports/1/photos/d.jpg", nil); err == nil {
		t.Fatal("recordPhoto should fail for a deleted report")
	}

	var n int64
	if err := db.Model(&schema.ReportPhoto{}).Where("report_id = ?", reportId).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("rejected uploads must not leave photo rows, found %d", n)
	}
}
