package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin           = "LOGIN"
	AuditActionLogout          = "LOGOUT"
	AuditActionEmployeeCreate  = "EMPLOYEE_CREATE"
	AuditActionEmployeeUpdate  = "EMPLOYEE_UPDATE"
	AuditActionEmployeeDelete  = "EMPLOYEE_DELETE"
	AuditActionEmployeeDisable = "EMPLOYEE_DISABLE"
	AuditActionRolesUpdate     = "ROLES_UPDATE"
	AuditActionEmployeeImport  = "EMPLOYEE_IMPORT"
	AuditActionAccountActivate = "ACCOUNT_ACTIVATE"
	AuditActionPasswordChange  = "PASSWORD_CHANGE"
	AuditActionPasswordReset   = "PASSWORD_RESET"
	AuditActionEmployeeExport  = "EMPLOYEE_EXPORT"
	AuditActionImportValidate  = "IMPORT_VALIDATE"
	AuditActionImportReport    = "IMPORT_REPORT_DOWNLOAD"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ErrorLog stores a storage failure surfaced to a caller.
type ErrorLog struct {
	ID        string    `db:"id" json:"id"`
	Operation string    `db:"operation" json:"operation"`
	Message   string    `db:"message" json:"message"`
	Detail    string    `db:"detail" json:"detail"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
