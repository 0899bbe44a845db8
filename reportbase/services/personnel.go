package services

import (
	"construction_reports/reportbase/auth"
	"construction_reports/reportbase/schema"
	"construction_reports/utils"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// PersonnelService manages the reference rosters reports are assembled
// from: engineering staff (itr), workers, and equipment.
type PersonnelService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *PersonnelService) ItrRoutes() chi.Router {
	return s.routes(s.CreateItr, s.ListItr, s.UpdateItr, s.DeleteItr)
}

func (s *PersonnelService) WorkerRoutes() chi.Router {
	return s.routes(s.CreateWorker, s.ListWorkers, s.UpdateWorker, s.DeleteWorker)
}

func (s *PersonnelService) EquipmentRoutes() chi.Router {
	return s.routes(s.CreateEquipment, s.ListEquipment, s.UpdateEquipment, s.DeleteEquipment)
}

func (s *PersonnelService) routes(create, list, update, del http.HandlerFunc) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/list", list)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly())

		r.Post("/create", create)
		r.Post("/{id}/update", update)
		r.Delete("/{id}", del)
	})

	return r
}

type personnelRequest struct {
	FullName string `json:"full_name"`
	Position string `json:"position"`
	Name     string `json:"name"`
}

type personnelResponse struct {
	Id int64 `json:"id"`
}

func (s *PersonnelService) create(w http.ResponseWriter, entity interface{}, id *int64, kind string) {
	result := s.db.Create(entity)
	if result.Error != nil {
		slog.Error(fmt.Sprintf("sql error creating %v", kind), "error", result.Error)
		http.Error(w, fmt.Sprintf("error creating %v: %v", kind, schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	utils.WriteJsonResponse(w, personnelResponse{Id: *id})
}

func (s *PersonnelService) CreateItr(w http.ResponseWriter, r *http.Request) {
	var params personnelRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.FullName == "" {
		http.Error(w, "full_name must be provided", http.StatusUnprocessableEntity)
		return
	}

	itr := schema.Itr{FullName: params.FullName}
	s.create(w, &itr, &itr.Id, "itr")
}

func (s *PersonnelService) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var params personnelRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.FullName == "" || params.Position == "" {
		http.Error(w, "full_name and position must be provided", http.StatusUnprocessableEntity)
		return
	}

	worker := schema.Worker{FullName: params.FullName, Position: params.Position}
	s.create(w, &worker, &worker.Id, "worker")
}

func (s *PersonnelService) CreateEquipment(w http.ResponseWriter, r *http.Request) {
	var params personnelRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Name == "" {
		http.Error(w, "name must be provided", http.StatusUnprocessableEntity)
		return
	}

	equipment := schema.Equipment{Name: params.Name}
	s.create(w, &equipment, &equipment.Id, "equipment")
}

type ItrInfo struct {
	Id       int64  `json:"id"`
	FullName string `json:"full_name"`
}

type WorkerInfo struct {
	Id       int64  `json:"id"`
	FullName string `json:"full_name"`
	Position string `json:"position"`
}

type EquipmentInfo struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
}

func (s *PersonnelService) ListItr(w http.ResponseWriter, r *http.Request) {
	var itrs []schema.Itr
	result := s.db.Order("id").Find(&itrs)
	if result.Error != nil {
		slog.Error("sql error listing itr", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing itr: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]ItrInfo, 0, len(itrs))
	for _, itr := range itrs {
		infos = append(infos, ItrInfo{Id: itr.Id, FullName: itr.FullName})
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *PersonnelService) ListWorkers(w http.ResponseWriter, r *http.Request) {
	var workers []schema.Worker
	result := s.db.Order("id").Find(&workers)
	if result.Error != nil {
		slog.Error("sql error listing workers", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing workers: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]WorkerInfo, 0, len(workers))
	for _, worker := range workers {
		infos = append(infos, WorkerInfo{Id: worker.Id, FullName: worker.FullName, Position: worker.Position})
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *PersonnelService) ListEquipment(w http.ResponseWriter, r *http.Request) {
	var equipment []schema.Equipment
	result := s.db.Order("id").Find(&equipment)
	if result.Error != nil {
		slog.Error("sql error listing equipment", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing equipment: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]EquipmentInfo, 0, len(equipment))
	for _, e := range equipment {
		infos = append(infos, EquipmentInfo{Id: e.Id, Name: e.Name})
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *PersonnelService) UpdateItr(w http.ResponseWriter, r *http.Request) {
	id, err := utils.URLParamInt(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params personnelRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.FullName == "" {
		http.Error(w, "full_name must be provided", http.StatusUnprocessableEntity)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetItr(id, txn); err != nil {
			if errors.Is(err, schema.ErrItrNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		result := txn.Model(&schema.Itr{Id: id}).Update("full_name", params.FullName)
		if result.Error != nil {
			slog.Error("sql error updating itr", "itr_id", id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating itr: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *PersonnelService) UpdateWorker(w http.ResponseWriter, r *http.Request) {
	id, err := utils.URLParamInt(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params personnelRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		worker, err := schema.GetWorker(id, txn)
		if err != nil {
			if errors.Is(err, schema.ErrWorkerNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.FullName != "" {
			worker.FullName = params.FullName
		}
		if params.Position != "" {
			worker.Position = params.Position
		}

		result := txn.Save(&worker)
		if result.Error != nil {
			slog.Error("sql error updating worker", "worker_id", id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating worker: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *PersonnelService) UpdateEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := utils.URLParamInt(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params personnelRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Name == "" {
		http.Error(w, "name must be provided", http.StatusUnprocessableEntity)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetEquipment(id, txn); err != nil {
			if errors.Is(err, schema.ErrEquipmentNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		result := txn.Model(&schema.Equipment{Id: id}).Update("name", params.Name)
		if result.Error != nil {
			slog.Error("sql error updating equipment", "equipment_id", id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating equipment: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

// Roster deletes clear the join rows first so no report is left pointing at
// a missing person or machine.
func (s *PersonnelService) deleteRosterEntry(w http.ResponseWriter, r *http.Request, joinModel interface{}, joinColumn string, model func(id int64) interface{}, kind string) {
	id, err := utils.URLParamInt(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	found := false

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Where(fmt.Sprintf("%v = ?", joinColumn), id).Delete(joinModel)
		if result.Error != nil {
			slog.Error(fmt.Sprintf("sql error deleting report links for %v", kind), "id", id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(model(id))
		if result.Error != nil {
			slog.Error(fmt.Sprintf("sql error deleting %v", kind), "id", id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		found = result.RowsAffected > 0
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting %v %v: %v", kind, id, err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, deleteResponse{Deleted: found})
}

func (s *PersonnelService) DeleteItr(w http.ResponseWriter, r *http.Request) {
	s.deleteRosterEntry(w, r, &schema.ReportItr{}, "itr_id", func(id int64) interface{} {
		return &schema.Itr{Id: id}
	}, "itr")
}

func (s *PersonnelService) DeleteWorker(w http.ResponseWriter, r *http.Request) {
	s.deleteRosterEntry(w, r, &schema.ReportWorker{}, "worker_id", func(id int64) interface{} {
		return &schema.Worker{Id: id}
	}, "worker")
}

func (s *PersonnelService) DeleteEquipment(w http.ResponseWriter, r *http.Request) {
	s.deleteRosterEntry(w, r, &schema.ReportEquipment{}, "equipment_id", func(id int64) interface{} {
		return &schema.Equipment{Id: id}
	}, "equipment")
}
