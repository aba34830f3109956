package models

import (
	"strings"
	"time"
)

// Role is an access role attached to an employee.
type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleHR         Role = "HR"
	RoleEmployee   Role = "Employee"
	RoleAccountant Role = "Accountant"
)

// Roles lists every assignable role in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleHR, RoleEmployee, RoleAccountant}
}

// ParseRole resolves a role token case-insensitively.
func ParseRole(raw string) (Role, bool) {
	raw = strings.TrimSpace(raw)
	for _, r := range Roles() {
		if strings.EqualFold(string(r), raw) {
			return r, true
		}
	}
	return "", false
}

// Gender of an employee.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// Genders lists the accepted gender values.
func Genders() []Gender {
	return []Gender{GenderMale, GenderFemale}
}

// ContractType of an employee.
type ContractType string

const (
	ContractCDI      ContractType = "CDI"
	ContractCDD      ContractType = "CDD"
	ContractSIVP     ContractType = "SIVP"
	ContractApprenti ContractType = "APPRENTI"
	ContractStage    ContractType = "STAGE"
)

// ContractTypes lists the accepted contract types.
func ContractTypes() []ContractType {
	return []ContractType{ContractCDI, ContractCDD, ContractSIVP, ContractApprenti, ContractStage}
}

// RequiresCNSS reports whether the contract type demands a social security number.
func (c ContractType) RequiresCNSS() bool {
	return c == ContractCDI || c == ContractCDD
}

// ForbidsCNSS reports whether the contract type must not carry a social security number.
func (c ContractType) ForbidsCNSS() bool {
	return c == ContractSIVP || c == ContractApprenti
}

// AccountStatus tracks whether an employee finished activation.
type AccountStatus string

const (
	AccountInactive AccountStatus = "Inactive"
	AccountActive   AccountStatus = "Active"
)

// Employee is a row of the employees table.
type Employee struct {
	ID            string        `db:"id" json:"id"`
	FirstName     string        `db:"first_name" json:"first_name"`
	LastName      string        `db:"last_name" json:"last_name"`
	Email         string        `db:"email" json:"email"`
	Number        int64         `db:"number" json:"number"`
	PhoneNumber   *string       `db:"phone_number" json:"phone_number,omitempty"`
	Address       *string       `db:"address" json:"address,omitempty"`
	BirthDate     *time.Time    `db:"birth_date" json:"birth_date,omitempty"`
	Gender        Gender        `db:"gender" json:"gender"`
	ContractType  ContractType  `db:"contract_type" json:"contract_type"`
	CNSSNumber    *string       `db:"cnss_number" json:"cnss_number,omitempty"`
	PasswordHash  *string       `db:"password_hash" json:"-"`
	AccountStatus AccountStatus `db:"account_status" json:"account_status"`
	Disabled      bool          `db:"disabled" json:"disabled"`
	LastLogin     *time.Time    `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
	Roles         []Role        `db:"-" json:"roles"`
}

// FullName joins first and last names.
func (e *Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// CanLogin reports whether the account may authenticate.
func (e *Employee) CanLogin() bool {
	return e.AccountStatus == AccountActive && !e.Disabled && e.PasswordHash != nil
}

// EmployeeRole links an employee to a role.
type EmployeeRole struct {
	EmployeeID string `db:"employee_id" json:"employee_id"`
	Role       Role   `db:"role" json:"role"`
}

// EmployeeFilter captures filtering criteria for listing employees.
type EmployeeFilter struct {
	Search        string
	ContractType  *ContractType
	AccountStatus *AccountStatus
	Role          *Role
	Disabled      *bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
