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
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type ClientService struct {
	db       *gorm.DB
	storage  storage.Storage
	userAuth auth.IdentityProvider
}

func (s *ClientService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly())

		r.Post("/create", s.Create)
		r.Get("/list", s.List)
		r.Get("/{client_id}", s.Info)
		r.Post("/{client_id}/update", s.Update)
		r.Delete("/{client_id}", s.Delete)

		r.Post("/{client_id}/objects/{object_id}", s.AssignObject)
		r.Delete("/{client_id}/objects/{object_id}", s.UnassignObject)
	})

	return r
}

type createClientRequest struct {
	FullName     string `json:"full_name"`
	Organization string `json:"organization"`
	ContactInfo  string `json:"contact_info"`
}

type createClientResponse struct {
	ClientId   int64  `json:"client_id"`
	UserId     int64  `json:"user_id"`
	AccessCode string `json:"access_code"`
}

func (s *ClientService) Create(w http.ResponseWriter, r *http.Request) {
	var params createClientRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.FullName == "" || params.Organization == "" {
		http.Error(w, "full_name and organization must be provided", http.StatusUnprocessableEntity)
		return
	}

	accessCode, err := generateAccessCode()
	if err != nil {
		slog.Error("error generating client access code", "error", err)
		http.Error(w, "error generating access code", http.StatusInternalServerError)
		return
	}

	user := schema.User{
		Role:       schema.ClientRole,
		AccessCode: &accessCode,
		CreatedAt:  time.Now().UTC(),
	}
	client := schema.Client{
		FullName:     params.FullName,
		Organization: params.Organization,
		ContactInfo:  params.ContactInfo,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Create(&user)
		if result.Error != nil {
			slog.Error("sql error creating client user entry", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		client.UserId = user.Id
		result = txn.Create(&client)
		if result.Error != nil {
			slog.Error("sql error creating client entry", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating client: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("created new client", "client_id", client.Id, "user_id", user.Id)

	res := createClientResponse{ClientId: client.Id, UserId: user.Id, AccessCode: accessCode}
	utils.WriteJsonResponse(w, res)
}

type ClientObjectInfo struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
}

type ClientInfo struct {
	Id           int64              `json:"id"`
	UserId       int64              `json:"user_id"`
	FullName     string             `json:"full_name"`
	Organization string             `json:"organization"`
	ContactInfo  string             `json:"contact_info"`
	Objects      []ClientObjectInfo `json:"objects"`
}

func convertToClientInfo(client *schema.Client) ClientInfo {
	objects := make([]ClientObjectInfo, 0, len(client.Objects))
	for _, link := range client.Objects {
		if link.Object != nil {
			objects = append(objects, ClientObjectInfo{Id: link.ObjectId, Name: link.Object.Name})
		}
	}

	return ClientInfo{
		Id:           client.Id,
		UserId:       client.UserId,
		FullName:     client.FullName,
		Organization: client.Organization,
		ContactInfo:  client.ContactInfo,
		Objects:      objects,
	}
}

func (s *ClientService) List(w http.ResponseWriter, r *http.Request) {
	var clients []schema.Client
	result := s.db.Preload("Objects").Preload("Objects.Object").Order("id").Find(&clients)
	if result.Error != nil {
		slog.Error("sql error listing clients", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing clients: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]ClientInfo, 0, len(clients))
	for _, c := range clients {
		infos = append(infos, convertToClientInfo(&c))
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *ClientService) Info(w http.ResponseWriter, r *http.Request) {
	clientId, err := utils.URLParamInt(r, "client_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	client, err := schema.GetClient(clientId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrClientNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting client info: %v", err), http.StatusInternalServerError)
		return
	}

	info := convertToClientInfo(&client)
	utils.WriteJsonResponse(w, info)
}

func (s *ClientService) Update(w http.ResponseWriter, r *http.Request) {
	clientId, err := utils.URLParamInt(r, "client_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createClientRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		client, err := schema.GetClient(clientId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrClientNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.FullName != "" {
			client.FullName = params.FullName
		}
		if params.Organization != "" {
			client.Organization = params.Organization
		}
		if params.ContactInfo != "" {
			client.ContactInfo = params.ContactInfo
		}

		result := txn.Save(&client)
		if result.Error != nil {
			slog.Error("sql error updating client", "client_id", clientId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating client: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *ClientService) AssignObject(w http.ResponseWriter, r *http.Request) {
	clientId, err := utils.URLParamInt(r, "client_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	objectId, err := utils.URLParamInt(r, "object_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetClient(clientId, txn, false); err != nil {
			if errors.Is(err, schema.ErrClientNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		if err := checkObjectExists(txn, objectId); err != nil {
			return err
		}

		var existing schema.ClientObject
		result := txn.Limit(1).Find(&existing, "client_id = ? and object_id = ?", clientId, objectId)
		if result.Error != nil {
			slog.Error("sql error checking for existing object assignment", "client_id", clientId, "object_id", objectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return nil
		}

		result = txn.Create(&schema.ClientObject{ClientId: clientId, ObjectId: objectId})
		if result.Error != nil {
			slog.Error("sql error assigning object to client", "client_id", clientId, "object_id", objectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error assigning object to client: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *ClientService) UnassignObject(w http.ResponseWriter, r *http.Request) {
	clientId, err := utils.URLParamInt(r, "client_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	objectId, err := utils.URLParamInt(r, "object_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := s.db.Where("client_id = ? and object_id = ?", clientId, objectId).Delete(&schema.ClientObject{})
	if result.Error != nil {
		slog.Error("sql error unassigning object from client", "client_id", clientId, "object_id", objectId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error unassigning object: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, deleteResponse{Deleted: result.RowsAffected > 0})
}

// Delete removes the client, its login, and its object assignments. Reports
// are cascaded only for objects no other client is assigned to; the object
// rows themselves survive so they can be reassigned later.
func (s *ClientService) Delete(w http.ResponseWriter, r *http.Request) {
	clientId, err := utils.URLParamInt(r, "client_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var deletedReportIds []int64
	found := true

	err = s.db.Transaction(func(txn *gorm.DB) error {
		client, err := schema.GetClient(clientId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrClientNotFound) {
				found = false
				return nil
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		objectIds, err := schema.GetClientObjectIds(clientId, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		exclusiveObjectIds := make([]int64, 0, len(objectIds))
		for _, objectId := range objectIds {
			var others int64
			result := txn.Model(&schema.ClientObject{}).
				Where("object_id = ? and client_id <> ?", objectId, clientId).
				Count(&others)
			if result.Error != nil {
				slog.Error("sql error counting other clients for object", "object_id", objectId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
			if others == 0 {
				exclusiveObjectIds = append(exclusiveObjectIds, objectId)
			}
		}

		reportIds, err := listObjectReportIds(txn, exclusiveObjectIds)
		if err != nil {
			return err
		}
		if err := deleteReportRows(txn, reportIds); err != nil {
			return err
		}
		deletedReportIds = reportIds

		result := txn.Where("client_id = ?", clientId).Delete(&schema.ClientObject{})
		if result.Error != nil {
			slog.Error("sql error deleting client object assignments", "client_id", clientId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Client{Id: clientId})
		if result.Error != nil {
			slog.Error("sql error deleting client", "client_id", clientId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.User{Id: client.UserId})
		if result.Error != nil {
			slog.Error("sql error deleting client user", "user_id", client.UserId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting client %v: %v", clientId, err), GetResponseCode(err))
		return
	}

	for _, reportId := range deletedReportIds {
		if err := s.storage.Delete(storage.ReportPath(reportId)); err != nil {
			slog.Error("error deleting report files after client cascade", "report_id", reportId, "error", err)
		}
	}

	if found {
		slog.Info("deleted client", "client_id", clientId, "cascaded_reports", len(deletedReportIds))
	}

	utils.WriteJsonResponse(w, deleteResponse{Deleted: found})
}
