package export

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReportExport is the flattened projection of a report with every relation
// resolved, ready to be handed to a renderer. Names are deduplicated so a
// renderer never has to re-query or re-filter.
type ReportExport struct {
	ReportId   int64      `json:"report_id"`
	ObjectName string     `json:"object_name"`
	Date       time.Time  `json:"date"`
	Shift      string     `json:"shift"`
	Category   string     `json:"category"`
	Subtype    *string    `json:"subtype,omitempty"`
	Comments   *string    `json:"comments,omitempty"`
	Status     string     `json:"status"`
	SentAt     *time.Time `json:"sent_at,omitempty"`

	Crew      []string        `json:"crew"`
	Workers   []WorkerExport  `json:"workers"`
	Equipment []EquipmentItem `json:"equipment"`
	Photos    []PhotoExport   `json:"photos"`
}

type WorkerExport struct {
	FullName string `json:"full_name"`
	Position string `json:"position"`
}

type EquipmentItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type PhotoExport struct {
	FilePath    string  `json:"file_path"`
	Description *string `json:"description,omitempty"`
}

// Renderer turns a report projection into a downloadable document. Json is
// the only implementation shipped here, pdf and excel renderers plug into
// the same interface.
type Renderer interface {
	ContentType() string

	Render(report ReportExport) ([]byte, error)
}

type JsonRenderer struct{}

func (JsonRenderer) ContentType() string {
	return "application/json"
}

func (JsonRenderer) Render(report ReportExport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("error encoding report export: %w", err)
	}
	return data, nil
}
