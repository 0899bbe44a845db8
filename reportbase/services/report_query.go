package services

import (
	"construction_reports/reportbase/auth"
	"construction_reports/reportbase/schema"
	"construction_reports/utils"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// buildListQuery translates the query string filters into a gorm query.
// Date filters compare against whole UTC days, so date=2025-06-01 matches
// every report filed during that day regardless of time.
func (s *ReportService) buildListQuery(r *http.Request) (*gorm.DB, error) {
	query := s.db.Model(&schema.Report{})

	params := r.URL.Query()

	if value := params.Get("object_id"); value != "" {
		objectId, err := utils.ParseInt(value)
		if err != nil {
			return nil, CodedError(fmt.Errorf("invalid object_id '%v'", value), http.StatusBadRequest)
		}
		query = query.Where("reports.object_id = ?", objectId)
	}

	if value := params.Get("status"); value != "" {
		if err := schema.CheckValidStatus(value); err != nil {
			return nil, CodedError(err, http.StatusBadRequest)
		}
		query = query.Where("reports.status = ?", value)
	}

	if value := params.Get("shift"); value != "" {
		if err := schema.CheckValidShift(value); err != nil {
			return nil, CodedError(err, http.StatusBadRequest)
		}
		query = query.Where("reports.shift = ?", value)
	}

	if value := params.Get("category"); value != "" {
		query = query.Where("reports.work_category = ?", value)
		if subtype := params.Get("subtype"); subtype != "" {
			query = query.Where("reports.work_subtype = ?", subtype)
		}
	}

	if value := params.Get("itr_id"); value != "" {
		itrId, err := utils.ParseInt(value)
		if err != nil {
			return nil, CodedError(fmt.Errorf("invalid itr_id '%v'", value), http.StatusBadRequest)
		}
		query = query.
			Joins("JOIN report_itr ON report_itr.report_id = reports.id").
			Where("report_itr.itr_id = ?", itrId)
	}

	if value := params.Get("date"); value != "" {
		day, err := time.ParseInLocation(dateLayout, value, time.UTC)
		if err != nil {
			return nil, CodedError(fmt.Errorf("invalid date '%v', expected YYYY-MM-DD", value), http.StatusBadRequest)
		}
		query = query.Where("reports.date >= ? AND reports.date < ?", day, day.AddDate(0, 0, 1))
	} else if params.Get("today") == "true" {
		now := time.Now().UTC()
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		query = query.Where("reports.date >= ? AND reports.date < ?", day, day.AddDate(0, 0, 1))
	} else {
		if value := params.Get("from"); value != "" {
			from, err := time.ParseInLocation(dateLayout, value, time.UTC)
			if err != nil {
				return nil, CodedError(fmt.Errorf("invalid from date '%v', expected YYYY-MM-DD", value), http.StatusBadRequest)
			}
			query = query.Where("reports.date >= ?", from)
		}
		if value := params.Get("to"); value != "" {
			to, err := time.ParseInLocation(dateLayout, value, time.UTC)
			if err != nil {
				return nil, CodedError(fmt.Errorf("invalid to date '%v', expected YYYY-MM-DD", value), http.StatusBadRequest)
			}
			query = query.Where("reports.date < ?", to.AddDate(0, 0, 1))
		}
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		return nil, CodedError(err, http.StatusInternalServerError)
	}
	visibleIds, restricted, err := auth.VisibleObjectIds(user, s.db)
	if err != nil {
		return nil, CodedError(err, http.StatusInternalServerError)
	}
	if restricted {
		query = query.Where("reports.object_id IN ?", visibleIds)
	}

	return query, nil
}

func (s *ReportService) listReports(r *http.Request) ([]schema.Report, error) {
	query, err := s.buildListQuery(r)
	if err != nil {
		return nil, err
	}

	var reports []schema.Report
	result := query.
		Preload("Object").
		Preload("Crew").Preload("Crew.Itr").
		Preload("Workers").Preload("Workers.Worker").
		Preload("Equipment").Preload("Equipment.Equipment").
		Preload("Photos").
		Order("reports.date DESC").Order("reports.id DESC").
		Find(&reports)
	if result.Error != nil {
		slog.Error("sql error listing reports", "error", result.Error)
		return nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	return reports, nil
}

func (s *ReportService) List(w http.ResponseWriter, r *http.Request) {
	reports, err := s.listReports(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error listing reports: %v", err), GetResponseCode(err))
		return
	}

	infos := make([]ReportInfo, 0, len(reports))
	for i := range reports {
		infos = append(infos, convertToReportInfo(&reports[i]))
	}
	utils.WriteJsonResponse(w, infos)
}

type GroupedShift struct {
	Shift     string  `json:"shift"`
	ReportIds []int64 `json:"report_ids"`
}

type GroupedDate struct {
	Date   string         `json:"date"`
	Shifts []GroupedShift `json:"shifts"`
}

type GroupedObject struct {
	ObjectId   int64         `json:"object_id"`
	ObjectName string        `json:"object_name"`
	Dates      []GroupedDate `json:"dates"`
}

// Grouped arranges matching reports into the object -> day -> shift
// hierarchy the review screens navigate. Objects are sorted by name, days
// newest first, and morning shifts precede evening within a day.
func (s *ReportService) Grouped(w http.ResponseWriter, r *http.Request) {
	reports, err := s.listReports(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error grouping reports: %v", err), GetResponseCode(err))
		return
	}

	type objectGroup struct {
		name   string
		dates  map[string]map[string][]int64
		dayIds []string
	}

	groups := make(map[int64]*objectGroup)
	for i := range reports {
		report := &reports[i]

		group, ok := groups[report.ObjectId]
		if !ok {
			group = &objectGroup{dates: make(map[string]map[string][]int64)}
			if report.Object != nil {
				group.name = report.Object.Name
			}
			groups[report.ObjectId] = group
		}

		day := report.Date.UTC().Format(dateLayout)
		shifts, ok := group.dates[day]
		if !ok {
			shifts = make(map[string][]int64)
			group.dates[day] = shifts
			group.dayIds = append(group.dayIds, day)
		}
		shifts[report.Shift] = append(shifts[report.Shift], report.Id)
	}

	res := make([]GroupedObject, 0, len(groups))
	for objectId, group := range groups {
		entry := GroupedObject{ObjectId: objectId, ObjectName: group.name, Dates: []GroupedDate{}}

		days := group.dayIds
		sort.Sort(sort.Reverse(sort.StringSlice(days)))
		for _, day := range days {
			date := GroupedDate{Date: day, Shifts: []GroupedShift{}}
			for _, shift := range []string{schema.MorningShift, schema.EveningShift} {
				if ids, ok := group.dates[day][shift]; ok {
					date.Shifts = append(date.Shifts, GroupedShift{Shift: shift, ReportIds: ids})
				}
			}
			entry.Dates = append(entry.Dates, date)
		}

		res = append(res, entry)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].ObjectName != res[j].ObjectName {
			return res[i].ObjectName < res[j].ObjectName
		}
		return res[i].ObjectId < res[j].ObjectId
	})

	utils.WriteJsonResponse(w, res)
}
