package dto

import (
	"time"

	"github.com/noah-isme/hr-admin-api/internal/importer"
)

// EmployeeImportRequest is the JSON body of a bulk upload: one map of field key
// to cell per spreadsheet line.
type EmployeeImportRequest struct {
	Lines       []importer.Row `json:"lines"`
	ForceUpload bool           `json:"forceUpload"`
}

// EmployeeImportResponse acknowledges an accepted upload.
type EmployeeImportResponse struct {
	Inserted int              `json:"inserted"`
	Emails   []string         `json:"emails"`
	Warnings string           `json:"warnings,omitempty"`
	Delivery ImportedDelivery `json:"delivery"`
}

// ImportedDelivery reports the activation email fan-out.
type ImportedDelivery struct {
	Sent     int      `json:"sent"`
	Failed   []string `json:"failed,omitempty"`
	Requeued int      `json:"requeued"`
}

// EmployeeImportValidation is the dry-run outcome.
type EmployeeImportValidation struct {
	Valid      bool                   `json:"valid"`
	Rows       int                    `json:"rows"`
	Errors     string                 `json:"errors"`
	Warnings   string                 `json:"warnings"`
	WrongCells []importer.WrongCell   `json:"wrongCells"`
	Headers    []importer.SheetHeader `json:"headers,omitempty"`
}

// ImportSchemaResponse lists the catalog for client side column mapping.
type ImportSchemaResponse struct {
	Fields []importer.FieldSpec `json:"fields"`
}

// ImportReportLink points at a stored rejection report.
type ImportReportLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
