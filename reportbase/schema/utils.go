package schema

import (
	"errors"
	"log/slog"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrClientNotFound    = errors.New("client not found")
	ErrObjectNotFound    = errors.New("object not found")
	ErrItrNotFound       = errors.New("itr not found")
	ErrWorkerNotFound    = errors.New("worker not found")
	ErrEquipmentNotFound = errors.New("equipment not found")
	ErrReportNotFound    = errors.New("report not found")
	ErrDbAccessFailed    = errors.New("db access failed")
)

func GetUser(userId int64, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetClient(clientId int64, db *gorm.DB, loadObjects bool) (Client, error) {
	var client Client

	var result *gorm.DB = db
	if loadObjects {
		result = result.Preload("Objects").Preload("Objects.Object")
	}
	result = result.First(&client, "id = ?", clientId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return client, ErrClientNotFound
		}
		slog.Error("sql error in get client", "client_id", clientId, "error", result.Error)
		return client, ErrDbAccessFailed
	}

	return client, nil
}

func GetObject(objectId int64, db *gorm.DB) (Object, error) {
	var object Object

	result := db.First(&object, "id = ?", objectId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return object, ErrObjectNotFound
		}
		slog.Error("sql error in get object", "object_id", objectId, "error", result.Error)
		return object, ErrDbAccessFailed
	}

	return object, nil
}

func GetReport(reportId int64, db *gorm.DB, loadRelations bool) (Report, error) {
	var report Report

	var result *gorm.DB = db
	if loadRelations {
		result = result.
			Preload("Object").
			Preload("Crew").Preload("Crew.Itr").
			Preload("Workers").Preload("Workers.Worker").
			Preload("Equipment").Preload("Equipment.Equipment").
			Preload("Photos")
	}
	result = result.First(&report, "id = ?", reportId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return report, ErrReportNotFound
		}
		slog.Error("sql error in get report", "report_id", reportId, "error", result.Error)
		return report, ErrDbAccessFailed
	}

	return report, nil
}

func GetItr(itrId int64, db *gorm.DB) (Itr, error) {
	var itr Itr

	result := db.First(&itr, "id = ?", itrId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return itr, ErrItrNotFound
		}
		slog.Error("sql error in get itr", "itr_id", itrId, "error", result.Error)
		return itr, ErrDbAccessFailed
	}

	return itr, nil
}

func GetWorker(workerId int64, db *gorm.DB) (Worker, error) {
	var worker Worker

	result := db.First(&worker, "id = ?", workerId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return worker, ErrWorkerNotFound
		}
		slog.Error("sql error in get worker", "worker_id", workerId, "error", result.Error)
		return worker, ErrDbAccessFailed
	}

	return worker, nil
}

func GetEquipment(equipmentId int64, db *gorm.DB) (Equipment, error) {
	var equipment Equipment

	result := db.First(&equipment, "id = ?", equipmentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return equipment, ErrEquipmentNotFound
		}
		slog.Error("sql error in get equipment", "equipment_id", equipmentId, "error", result.Error)
		return equipment, ErrDbAccessFailed
	}

	return equipment, nil
}

// GetClientObjectIds returns the ids of all objects assigned to the client.
func GetClientObjectIds(clientId int64, db *gorm.DB) ([]int64, error) {
	var links []ClientObject
	result := db.Find(&links, "client_id = ?", clientId)
	if result.Error != nil {
		slog.Error("sql error in get client object ids", "client_id", clientId, "error", result.Error)
		return nil, ErrDbAccessFailed
	}
	ids := make([]int64, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.ObjectId)
	}
	return ids, nil
}
