package services

import (
	"construction_reports/reportbase/export"
	"construction_reports/reportbase/schema"
	"construction_reports/utils"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// buildReportExport flattens a fully loaded report into the renderer
// projection. Duplicate crew, worker, and equipment links are collapsed so
// the rendered document never repeats a name.
func buildReportExport(report *schema.Report) export.ReportExport {
	res := export.ReportExport{
		ReportId: report.Id,
		Date:     report.Date,
		Shift:    report.Shift,
		Category: report.WorkCategory,
		Subtype:  report.WorkSubtype,
		Comments: report.Comments,
		Status:   report.Status,
		SentAt:   report.SentAt,

		Crew:      []string{},
		Workers:   []export.WorkerExport{},
		Equipment: []export.EquipmentItem{},
		Photos:    []export.PhotoExport{},
	}

	if report.Object != nil {
		res.ObjectName = report.Object.Name
	}

	seenItr := make(map[int64]bool)
	for _, link := range report.Crew {
		if link.Itr == nil || seenItr[link.ItrId] {
			continue
		}
		seenItr[link.ItrId] = true
		res.Crew = append(res.Crew, link.Itr.FullName)
	}

	seenWorkers := make(map[int64]bool)
	for _, link := range report.Workers {
		if link.Worker == nil || seenWorkers[link.WorkerId] {
			continue
		}
		seenWorkers[link.WorkerId] = true
		res.Workers = append(res.Workers, export.WorkerExport{FullName: link.Worker.FullName, Position: link.Worker.Position})
	}

	seenEquipment := make(map[int64]bool)
	for _, link := range report.Equipment {
		if link.Equipment == nil || seenEquipment[link.EquipmentId] {
			continue
		}
		seenEquipment[link.EquipmentId] = true
		res.Equipment = append(res.Equipment, export.EquipmentItem{Name: link.Equipment.Name, Quantity: link.Quantity})
	}

	for _, photo := range report.Photos {
		res.Photos = append(res.Photos, export.PhotoExport{FilePath: photo.FilePath, Description: photo.Description})
	}

	return res
}

func (s *ReportService) Export(w http.ResponseWriter, r *http.Request) {
	reportId, err := utils.URLParamInt(r, "report_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := schema.GetReport(reportId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrReportNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error exporting report: %v", err), http.StatusInternalServerError)
		return
	}

	if err := s.checkReportVisible(r, &report); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	data, err := s.renderer.Render(buildReportExport(&report))
	if err != nil {
		slog.Error("error rendering report export", "report_id", reportId, "error", err)
		http.Error(w, fmt.Sprintf("error exporting report: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", s.renderer.ContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("error writing report export response", "report_id", reportId, "error", err)
	}
}
