package services

import (
	"construction_reports/reportbase/auth"
	"construction_reports/reportbase/schema"
	"construction_reports/reportbase/storage"
	"construction_reports/utils"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type ObjectService struct {
	db       *gorm.DB
	storage  storage.Storage
	userAuth auth.IdentityProvider
}

func (s *ObjectService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/list", s.List)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly())

		r.Post("/create", s.Create)
		r.Post("/{object_id}/update", s.Update)
		r.Delete("/{object_id}", s.Delete)
	})

	return r
}

type objectRequest struct {
	Name string `json:"name"`
}

type objectResponse struct {
	ObjectId int64 `json:"object_id"`
}

func (s *ObjectService) Create(w http.ResponseWriter, r *http.Request) {
	var params objectRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "object name must be provided", http.StatusUnprocessableEntity)
		return
	}

	object := schema.Object{Name: params.Name}
	result := s.db.Create(&object)
	if result.Error != nil {
		slog.Error("sql error creating object", "error", result.Error)
		http.Error(w, fmt.Sprintf("error creating object: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, objectResponse{ObjectId: object.Id})
}

type ObjectInfo struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
}

func (s *ObjectService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	visibleIds, restricted, err := auth.VisibleObjectIds(user, s.db)
	if err != nil {
		http.Error(w, fmt.Sprintf("error listing objects: %v", err), http.StatusInternalServerError)
		return
	}

	query := s.db.Order("id")
	if restricted {
		query = query.Where("id IN ?", visibleIds)
	}

	var objects []schema.Object
	result := query.Find(&objects)
	if result.Error != nil {
		slog.Error("sql error listing objects", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing objects: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]ObjectInfo, 0, len(objects))
	for _, object := range objects {
		infos = append(infos, ObjectInfo{Id: object.Id, Name: object.Name})
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *ObjectService) Update(w http.ResponseWriter, r *http.Request) {
	objectId, err := utils.URLParamInt(r, "object_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params objectRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "object name must be provided", http.StatusUnprocessableEntity)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkObjectExists(txn, objectId); err != nil {
			return err
		}

		result := txn.Model(&schema.Object{Id: objectId}).Update("name", params.Name)
		if result.Error != nil {
			slog.Error("sql error renaming object", "object_id", objectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating object: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

// Delete removes the object along with every report filed for it and every
// client assignment referencing it.
func (s *ObjectService) Delete(w http.ResponseWriter, r *http.Request) {
	objectId, err := utils.URLParamInt(r, "object_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var deletedReportIds []int64
	found := true

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetObject(objectId, txn); err != nil {
			if errors.Is(err, schema.ErrObjectNotFound) {
				found = false
				return nil
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		reportIds, err := listObjectReportIds(txn, []int64{objectId})
		if err != nil {
			return err
		}
		if err := deleteReportRows(txn, reportIds); err != nil {
			return err
		}
		deletedReportIds = reportIds

		result := txn.Where("object_id = ?", objectId).Delete(&schema.ClientObject{})
		if result.Error != nil {
			slog.Error("sql error deleting client assignments for object", "object_id", objectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Object{Id: objectId})
		if result.Error != nil {
			slog.Error("sql error deleting object", "object_id", objectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting object %v: %v", objectId, err), GetResponseCode(err))
		return
	}

	for _, reportId := range deletedReportIds {
		if err := s.storage.Delete(storage.ReportPath(reportId)); err != nil {
			slog.Error("error deleting report files after object cascade", "report_id", reportId, "error", err)
		}
	}

	if found {
		slog.Info("deleted object", "object_id", objectId, "cascaded_reports", len(deletedReportIds))
	}

	utils.WriteJsonResponse(w, deleteResponse{Deleted: found})
}
