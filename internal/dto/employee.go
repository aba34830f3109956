package dto

import (
	"strings"

	"github.com/noah-isme/hr-admin-api/internal/importer"
)

// EmployeeRequest carries the editable profile of an employee. It is checked
// with the same field rules as a bulk import line.
type EmployeeRequest struct {
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	Email        string   `json:"email"`
	Number       *int64   `json:"number"`
	PhoneNumber  *string  `json:"phone_number"`
	Address      *string  `json:"address"`
	BirthDate    *string  `json:"birth_date"`
	Gender       string   `json:"gender"`
	ContractType string   `json:"contract_type"`
	CNSSNumber   *string  `json:"cnss_number"`
	Roles        []string `json:"roles"`
}

// Row converts the request into an import row. Absent optional values are left
// out so they are reported exactly like a missing spreadsheet column.
func (r EmployeeRequest) Row() importer.Row {
	row := importer.Row{}
	set := func(f importer.Field, v importer.Value) {
		row[f.Key()] = importer.Cell{Value: v, RowIndex: 0, ColIndex: int(f)}
	}
	setText := func(f importer.Field, v string) {
		if strings.TrimSpace(v) != "" {
			set(f, importer.String(v))
		}
	}
	setOptional := func(f importer.Field, v *string) {
		if v != nil {
			set(f, importer.String(*v))
		}
	}

	setText(importer.FieldFirstName, r.FirstName)
	setText(importer.FieldLastName, r.LastName)
	setText(importer.FieldEmail, r.Email)
	setText(importer.FieldGender, r.Gender)
	setText(importer.FieldContractType, r.ContractType)
	setOptional(importer.FieldPhoneNumber, r.PhoneNumber)
	setOptional(importer.FieldAddress, r.Address)
	setOptional(importer.FieldBirthDate, r.BirthDate)
	setOptional(importer.FieldCNSSNumber, r.CNSSNumber)
	if r.Number != nil {
		set(importer.FieldNumber, importer.Int(*r.Number))
	}
	if len(r.Roles) > 0 {
		set(importer.FieldJobPosition, importer.List(r.Roles))
	}
	return row
}

// UpdateRolesRequest replaces the role set of an employee.
type UpdateRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,required"`
}

// SetDisabledRequest disables or re-enables an account.
type SetDisabledRequest struct {
	Disabled *bool `json:"disabled" validate:"required"`
}
