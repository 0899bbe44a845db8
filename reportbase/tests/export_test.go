package tests

import (
	"construction_reports/reportbase/export"
	"construction_reports/reportbase/schema"
	"encoding/json"
	"strings"
	"testing"
)

func TestExportReport(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	objectId, itrIds, workerIds, equipmentIds := setupRoster(t, admin)
	reportId := createFullReport(t, admin, objectId, itrIds, workerIds, equipmentIds)

	if err := admin.setComments(reportId, "rain until noon"); err != nil {
		t.Fatal(err)
	}
	if err := admin.sendReport(reportId, admin.userId); err != nil {
		t.Fatal(err)
	}

	data, contentType, err := admin.exportReport(reportId)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(contentType, "application/json") {
		t.Fatalf("unexpected content type %v", contentType)
	}

	var res export.ReportExport
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatal(err)
	}

	if res.ReportId != reportId || res.ObjectName != "North Site" || res.Status != "sent" || res.SentAt == nil {
		t.Fatalf("invalid export %+v", res)
	}
	if res.Comments == nil || *res.Comments != "rain until noon" {
		t.Fatalf("comments missing from export %+v", res)
	}
	if len(res.Crew) != len(itrIds) || len(res.Workers) != len(workerIds) || len(res.Equipment) != len(equipmentIds) {
		t.Fatalf("export associations incomplete %+v", res)
	}
	for _, item := range res.Equipment {
		if item.Quantity != 2 {
			t.Fatalf("equipment quantity missing from export %+v", item)
		}
	}
	if len(res.Photos) != 1 {
		t.Fatalf("photos missing from export %+v", res)
	}
}

func TestExportLeavesReportUntouched(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	objectId, itrIds, _, _ := setupRoster(t, admin)

	reportId, err := admin.createReport(reportArgs{ObjectId: objectId, Shift: "morning", WorkCategory: "Общестроительные работы"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := admin.setCrew(reportId, itrIds[:1]); err != nil {
		t.Fatal(err)
	}

	data, _, err := admin.exportReport(reportId)
	if err != nil {
		t.Fatal(err)
	}

	var res export.ReportExport
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Crew) != 1 {
		t.Fatalf("unexpected crew in export %v", res.Crew)
	}

	var report schema.Report
	if err := env.db.First(&report, "id = ?", reportId).Error; err != nil {
		t.Fatal(err)
	}
	if report.Status != "draft" {
		t.Fatal("export must not change report status")
	}
}

func TestJsonRendererOutput(t *testing.T) {
	renderer := export.JsonRenderer{}

	if renderer.ContentType() != "application/json" {
		t.Fatalf("unexpected content type %v", renderer.ContentType())
	}

	data, err := renderer.Render(export.ReportExport{ReportId: 7, ObjectName: "site", Shift: "morning", Status: "draft"})
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["report_id"].(float64) != 7 || decoded["object_name"] != "site" {
		t.Fatalf("unexpected render output %v", decoded)
	}
}
