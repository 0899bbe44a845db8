package services

import (
	"construction_reports/reportbase/schema"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"gorm.io/gorm"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

func generateAccessCode() (string, error) {
	bytes := make([]byte, 12)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("error generating access code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func checkUserExists(txn *gorm.DB, userId int64) error {
	if _, err := schema.GetUser(userId, txn); err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkObjectExists(txn *gorm.DB, objectId int64) error {
	if _, err := schema.GetObject(objectId, txn); err != nil {
		if errors.Is(err, schema.ErrObjectNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func getDraftReport(txn *gorm.DB, reportId int64) (schema.Report, error) {
	report, err := schema.GetReport(reportId, txn, false)
	if err != nil {
		if errors.Is(err, schema.ErrReportNotFound) {
			return report, CodedError(err, http.StatusNotFound)
		}
		return report, CodedError(err, http.StatusInternalServerError)
	}

	if report.Status != schema.StatusDraft {
		return report, CodedError(fmt.Errorf("report %v has already been sent and can no longer be edited", reportId), http.StatusUnprocessableEntity)
	}

	return report, nil
}

// deleteReportRows removes every row belonging to the given reports, join
// tables first so no association ever outlives its report. Photo blobs are
// removed by the caller after the transaction commits.
func deleteReportRows(txn *gorm.DB, reportIds []int64) error {
	if len(reportIds) == 0 {
		return nil
	}

	joinModels := []interface{}{
		&schema.ReportEquipment{}, &schema.ReportItr{}, &schema.ReportWorker{},
	}
	for _, model := range joinModels {
		result := txn.Where("report_id IN ?", reportIds).Delete(model)
		if result.Error != nil {
			slog.Error("sql error deleting report association rows", "report_ids", reportIds, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
	}

	result := txn.Where("report_id IN ?", reportIds).Delete(&schema.ReportPhoto{})
	if result.Error != nil {
		slog.Error("sql error deleting report photo rows", "report_ids", reportIds, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	result = txn.Where("id IN ?", reportIds).Delete(&schema.Report{})
	if result.Error != nil {
		slog.Error("sql error deleting reports", "report_ids", reportIds, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	return nil
}

func listObjectReportIds(txn *gorm.DB, objectIds []int64) ([]int64, error) {
	if len(objectIds) == 0 {
		return nil, nil
	}

	var reportIds []int64
	result := txn.Model(&schema.Report{}).Where("object_id IN ?", objectIds).Pluck("id", &reportIds)
	if result.Error != nil {
		slog.Error("sql error listing reports for objects", "object_ids", objectIds, "error", result.Error)
		return nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return reportIds, nil
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
}
