package services

import (
	"construction_reports/reportbase/auth"
	"construction_reports/reportbase/config"
	"construction_reports/reportbase/export"
	"construction_reports/reportbase/schema"
	"construction_reports/reportbase/storage"
	"construction_reports/utils"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReportService struct {
	db       *gorm.DB
	storage  storage.Storage
	catalog  *config.WorkCatalog
	userAuth auth.IdentityProvider
	renderer export.Renderer
}

func (s *ReportService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/list", s.List)
		r.Get("/grouped", s.Grouped)
		r.Get("/{report_id}", s.Info)
		r.Get("/{report_id}/export", s.Export)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly())

		r.Post("/create", s.Create)

		r.Post("/{report_id}/itr", s.ReplaceCrew)
		r.Post("/{report_id}/workers", s.MergeWorkers)
		r.Post("/{report_id}/equipment", s.ReplaceEquipment)
		r.Post("/{report_id}/photos", s.AddPhotos)
		r.Post("/{report_id}/comments", s.UpdateComments)
		r.Post("/{report_id}/send", s.Send)

		r.Delete("/{report_id}", s.Delete)
	})

	return r
}

type createReportRequest struct {
	ObjectId     int64   `json:"object_id"`
	Shift        string  `json:"shift"`
	WorkCategory string  `json:"work_category"`
	WorkSubtype  *string `json:"work_subtype"`
	Comments     *string `json:"comments"`
}

type createReportResponse struct {
	ReportId int64 `json:"report_id"`
}

func (s *ReportService) Create(w http.ResponseWriter, r *http.Request) {
	var params createReportRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidShift(params.Shift); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err := s.catalog.CheckValidWork(params.WorkCategory, params.WorkSubtype); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	report := schema.Report{
		ObjectId:     params.ObjectId,
		Date:         time.Now().UTC(),
		Shift:        params.Shift,
		WorkCategory: params.WorkCategory,
		WorkSubtype:  params.WorkSubtype,
		Comments:     params.Comments,
		Status:       schema.StatusDraft,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetObject(params.ObjectId, txn); err != nil {
			if errors.Is(err, schema.ErrObjectNotFound) {
				return CodedError(fmt.Errorf("cannot create report for unknown object %v", params.ObjectId), http.StatusUnprocessableEntity)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		result := txn.Create(&report)
		if result.Error != nil {
			slog.Error("sql error creating report", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating report: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("created report draft", "report_id", report.Id, "object_id", report.ObjectId)

	utils.WriteJsonResponse(w, createReportResponse{ReportId: report.Id})
}

// setResult reports the outcome of a best effort roster update. Ids that
// resolved are applied, ids with no matching roster entry are skipped.
type setResult struct {
	Applied []int64 `json:"applied"`
	Skipped []int64 `json:"skipped"`
}

func newSetResult() setResult {
	return setResult{Applied: []int64{}, Skipped: []int64{}}
}

func splitResolved(requested, found []int64) setResult {
	res := newSetResult()
	for _, id := range requested {
		if slices.Contains(res.Applied, id) || slices.Contains(res.Skipped, id) {
			continue
		}
		if slices.Contains(found, id) {
			res.Applied = append(res.Applied, id)
		} else {
			res.Skipped = append(res.Skipped, id)
		}
	}
	return res
}

type crewRequest struct {
	ItrIds []int64 `json:"itr_ids"`
}

// ReplaceCrew sets the engineering staff of a draft to exactly the given
// set. The selection screen always resubmits the full list, so the previous
// assignment is discarded rather than merged.
func (s *ReportService) ReplaceCrew(w http.ResponseWriter, r *http.Request) {
	reportId, err := utils.URLParamInt(r, "report_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params crewRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var res setResult

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getDraftReport(txn, reportId); err != nil {
			return err
		}

		var foundIds []int64
		result := txn.Model(&schema.Itr{}).Where("id IN ?", params.ItrIds).Pluck("id", &foundIds)
		if result.Error != nil {
			slog.Error("sql error resolving itr ids", "report_id", reportId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		res = splitResolved(params.ItrIds, foundIds)

		result = txn.Where("report_id = ?", reportId).Delete(&schema.ReportItr{})
		if result.Error != nil {
			slog.Error("sql error clearing report crew", "report_id", reportId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		for _, itrId := range res.Applied {
			result := txn.Create(&schema.ReportItr{ReportId: reportId, ItrId: itrId})
			if result.Error != nil {
				slog.Error("sql error adding itr to report", "report_id", reportId, "itr_id", itrId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating report crew: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, res)
}

type workersRequest struct {
	WorkerIds []int64 `json:"worker_ids"`
}

// MergeWorkers adds workers to a draft without touching the ones already
// assigned. The worker picker hides already selected entries, so each
// submission only carries the new additions.
func (s *ReportService) MergeWorkers(w http.ResponseWriter, r *http.Request) {
	reportId, err := utils.URLParamInt(r, "report_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params workersRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var res setResult

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getDraftReport(txn, reportId); err != nil {
			return err
		}

		var foundIds []int64
		result := txn.Model(&schema.Worker{}).Where("id IN ?", params.WorkerIds).Pluck("id", &foundIds)
		if result.Error != nil {
			slog.Error("sql error resolving worker ids", "report_id", reportId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		res = splitResolved(params.WorkerIds, foundIds)

		var existingIds []int64
		result = txn.Model(&schema.ReportWorker{}).Where("report_id = ?", reportId).Pluck("worker_id", &existingIds)
		if result.Error != nil {
			slog.Error("sql error loading existing report workers", "report_id", reportId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		for _, workerId := range res.Applied {
			if slices.Contains(existingIds, workerId) {
				continue
			}
			result := txn.Create(&schema.ReportWorker{ReportId: reportId, WorkerId: workerId})
			if result.Error != nil {
				slog.Error("sql error adding worker to report", "report_id", reportId, "worker_id", workerId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating report workers: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, res)
}

type equipmentItem struct {
	EquipmentId int64 `json:"equipment_id"`
	Quantity    int   `json:"quantity"`
}

type equipmentRequest struct {
	Equipment []equipmentItem `json:"equipment"`
}

// ReplaceEquipment sets the machinery of a draft to exactly the given set,
// like ReplaceCrew. A missing or non positive quantity counts as one unit.
func (s *ReportService) ReplaceEquipment(w http.ResponseWriter, r *http.Request) {
	reportId, err := utils.URLParamInt(r, "report_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params equipmentRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var res setResult

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getDraftReport(txn, reportId); err != nil {
			return err
		}

		requestedIds := make([]int64, 0, len(params.Equipment))
		quantities := make(map[int64]int, len(params.Equipment))
		for _, item := range params.Equipment {
			requestedIds = append(requestedIds, item.EquipmentId)
			quantity := item.Quantity
			if quantity < 1 {
				quantity = 1
			}
			quantities[item.EquipmentId] = quantity
		}

		var foundIds []int64
		result := txn.Model(&schema.Equipment{}).Where("id IN ?", requestedIds).Pluck("id", &foundIds)
		if result.Error != nil {
			slog.Error("sql error resolving equipment ids", "report_id", reportId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		res = splitResolved(requestedIds, foundIds)

		result = txn.Where("report_id = ?", reportId).Delete(&schema.ReportEquipment{})
		if result.Error != nil {
			slog.Error("sql error clearing report equipment", "report_id", reportId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		for _, equipmentId := range res.Applied {
			entry := schema.ReportEquipment{ReportId: reportId, EquipmentId: equipmentId, Quantity: quantities[equipmentId]}
			result := txn.Create(&entry)
			if result.Error != nil {
				slog.Error("sql error adding equipment to report", "report_id", reportId, "equipment_id", equipmentId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating report equipment: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, res)
}

type photoUploadResponse struct {
	PhotoIds []int64  `json:"photo_ids"`
	Failed   []string `json:"failed"`
}

// AddPhotos appends uploaded files to a draft. Each file is written to
// storage and recorded on its own, a failure only skips that file.
func (s *ReportService) AddPhotos(w http.ResponseWriter, r *http.Request) {
	reportId, err := utils.URLParamInt(r, "report_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := getDraftReport(s.db, reportId); err != nil {
		http.Error(w, fmt.Sprintf("error adding photos: %v", err), GetResponseCode(err))
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("error parsing multipart form: %v", err), http.StatusBadRequest)
		return
	}

	var description *string
	if value := r.FormValue("description"); value != "" {
		description = &value
	}

	res := photoUploadResponse{PhotoIds: []int64{}, Failed: []string{}}

	for _, header := range r.MultipartForm.File["photos"] {
		file, err := header.Open()
		if err != nil {
			slog.Error("error opening uploaded photo", "report_id", reportId, "filename", header.Filename, "error", err)
			res.Failed = append(res.Failed, header.Filename)
			continue
		}

		filename := uuid.New().String() + filepath.Ext(header.Filename)
		path := storage.ReportPhotoPath(reportId, filename)

		err = s.storage.Write(path, file)
		file.Close()
		if err != nil {
			slog.Error("error storing uploaded photo", "report_id", reportId, "filename", header.Filename, "error", err)
			res.Failed = append(res.Failed, header.Filename)
			continue
		}

		photoId, err := s.recordPhoto(reportId, path, description)
		if err != nil {
			slog.Error("error recording uploaded photo", "report_id", reportId, "filename", header.Filename, "error", err)
			res.Failed = append(res.Failed, header.Filename)
			continue
		}

		res.PhotoIds = append(res.PhotoIds, photoId)
	}

	slog.Info("added photos to report", "report_id", reportId, "added", len(res.PhotoIds), "failed", len(res.Failed))

	utils.WriteJsonResponse(w, res)
}

// recordPhoto re-checks the draft inside the transaction so an upload
// racing a report delete or send cannot insert a row for a report that is
// gone or frozen. The already written file is reclaimed by the photo sweep.
func (s *ReportService) recordPhoto(reportId int64, path string, description *string) (int64, error) {
	photo := schema.ReportPhoto{ReportId: reportId, FilePath: path, Description: description}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getDraftReport(txn, reportId); err != nil {
			return err
		}

		result := txn.Create(&photo)
		if result.Error != nil {
			slog.Error("sql error recording uploaded photo", "report_id", reportId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return photo.Id, nil
}

type commentsRequest struct {
	Comments string `json:"comments"`
}

func (s *ReportService) UpdateComments(w http.ResponseWriter, r *http.Request) {
	reportId, err := utils.URLParamInt(r, "report_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params commentsRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getDraftReport(txn, reportId); err != nil {
			return err
		}

		result := txn.Model(&schema.Report{Id: reportId}).Update("comments", params.Comments)
		if result.Error != nil {
			slog.Error("sql error updating report comments", "report_id", reportId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating report comments: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type sendReportRequest struct {
	RecipientId int64 `json:"recipient_id"`
}

// Send finalizes a draft. Validation happens before any mutation, so a
// rejected report stays a draft untouched. Crew, worker, and equipment
// lists may legitimately be empty, an idle site still gets a report.
func (s *ReportService) Send(w http.ResponseWriter, r *http.Request) {
	reportId, err := utils.URLParamInt(r, "report_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params sendReportRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		report, err := getDraftReport(txn, reportId)
		if err != nil {
			return err
		}

		if err := checkObjectExists(txn, report.ObjectId); err != nil {
			return CodedError(fmt.Errorf("report %v cannot be sent: object is missing", reportId), http.StatusUnprocessableEntity)
		}
		if err := schema.CheckValidShift(report.Shift); err != nil {
			return CodedError(fmt.Errorf("report %v cannot be sent: %w", reportId, err), http.StatusUnprocessableEntity)
		}
		if err := s.catalog.CheckValidWork(report.WorkCategory, report.WorkSubtype); err != nil {
			return CodedError(fmt.Errorf("report %v cannot be sent: %w", reportId, err), http.StatusUnprocessableEntity)
		}
		if err := checkUserExists(txn, params.RecipientId); err != nil {
			return CodedError(fmt.Errorf("report %v cannot be sent: recipient %v does not exist", reportId, params.RecipientId), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":       schema.StatusSent,
			"sent_at":      now,
			"recipient_id": params.RecipientId,
		}
		result := txn.Model(&schema.Report{Id: reportId}).Updates(updates)
		if result.Error != nil {
			slog.Error("sql error marking report as sent", "report_id", reportId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error sending report: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("report sent", "report_id", reportId, "recipient_id", params.RecipientId)

	utils.WriteSuccess(w)
}

func (s *ReportService) Delete(w http.ResponseWriter, r *http.Request) {
	reportId, err := utils.URLParamInt(r, "report_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	found := true

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetReport(reportId, txn, false); err != nil {
			if errors.Is(err, schema.ErrReportNotFound) {
				found = false
				return nil
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		return deleteReportRows(txn, []int64{reportId})
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting report %v: %v", reportId, err), GetResponseCode(err))
		return
	}

	if found {
		if err := s.storage.Delete(storage.ReportPath(reportId)); err != nil {
			slog.Error("error deleting report files", "report_id", reportId, "error", err)
		}
		slog.Info("deleted report", "report_id", reportId)
	}

	utils.WriteJsonResponse(w, deleteResponse{Deleted: found})
}

type ReportEquipmentInfo struct {
	Id       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type PhotoInfo struct {
	Id          int64   `json:"id"`
	FilePath    string  `json:"file_path"`
	Description *string `json:"description,omitempty"`
}

type ReportInfo struct {
	Id           int64      `json:"id"`
	ObjectId     int64      `json:"object_id"`
	ObjectName   string     `json:"object_name"`
	Date         time.Time  `json:"date"`
	Shift        string     `json:"shift"`
	WorkCategory string     `json:"work_category"`
	WorkSubtype  *string    `json:"work_subtype,omitempty"`
	Comments     *string    `json:"comments,omitempty"`
	Status       string     `json:"status"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	RecipientId  *int64     `json:"recipient_id,omitempty"`

	Crew      []ItrInfo             `json:"crew"`
	Workers   []WorkerInfo          `json:"workers"`
	Equipment []ReportEquipmentInfo `json:"equipment"`
	Photos    []PhotoInfo           `json:"photos"`
}

func convertToReportInfo(report *schema.Report) ReportInfo {
	info := ReportInfo{
		Id:           report.Id,
		ObjectId:     report.ObjectId,
		Date:         report.Date,
		Shift:        report.Shift,
		WorkCategory: report.WorkCategory,
		WorkSubtype:  report.WorkSubtype,
		Comments:     report.Comments,
		Status:       report.Status,
		SentAt:       report.SentAt,
		RecipientId:  report.RecipientId,
		Crew:         []ItrInfo{},
		Workers:      []WorkerInfo{},
		Equipment:    []ReportEquipmentInfo{},
		Photos:       []PhotoInfo{},
	}

	if report.Object != nil {
		info.ObjectName = report.Object.Name
	}
	for _, link := range report.Crew {
		if link.Itr != nil {
			info.Crew = append(info.Crew, ItrInfo{Id: link.ItrId, FullName: link.Itr.FullName})
		}
	}
	for _, link := range report.Workers {
		if link.Worker != nil {
			info.Workers = append(info.Workers, WorkerInfo{Id: link.WorkerId, FullName: link.Worker.FullName, Position: link.Worker.Position})
		}
	}
	for _, link := range report.Equipment {
		if link.Equipment != nil {
			info.Equipment = append(info.Equipment, ReportEquipmentInfo{Id: link.EquipmentId, Name: link.Equipment.Name, Quantity: link.Quantity})
		}
	}
	for _, photo := range report.Photos {
		info.Photos = append(info.Photos, PhotoInfo{Id: photo.Id, FilePath: photo.FilePath, Description: photo.Description})
	}

	return info
}

func (s *ReportService) checkReportVisible(r *http.Request, report *schema.Report) error {
	user, err := auth.UserFromContext(r)
	if err != nil {
		return CodedError(err, http.StatusInternalServerError)
	}

	visibleIds, restricted, err := auth.VisibleObjectIds(user, s.db)
	if err != nil {
		return CodedError(err, http.StatusInternalServerError)
	}

	if restricted && !slices.Contains(visibleIds, report.ObjectId) {
		return CodedError(fmt.Errorf("user %v does not have access to reports for object %v", user.Id, report.ObjectId), http.StatusForbidden)
	}
	return nil
}

func (s *ReportService) Info(w http.ResponseWriter, r *http.Request) {
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
		http.Error(w, fmt.Sprintf("error getting report info: %v", err), http.StatusInternalServerError)
		return
	}

	if err := s.checkReportVisible(r, &report); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, convertToReportInfo(&report))
}
