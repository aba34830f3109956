package importer

import (
	"time"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

// Employee maps a cleaned record onto a new, inactive employee.
func (c Cleaned) Employee() models.Employee {
	emp := models.Employee{
		FirstName:     c.Text(FieldFirstName),
		LastName:      c.Text(FieldLastName),
		Email:         c.Text(FieldEmail),
		Gender:        models.Gender(c.Text(FieldGender)),
		ContractType:  models.ContractType(c.Text(FieldContractType)),
		AccountStatus: models.AccountInactive,
		PhoneNumber:   c.optional(FieldPhoneNumber),
		Address:       c.optional(FieldAddress),
		CNSSNumber:    c.optional(FieldCNSSNumber),
	}
	if v, ok := c[FieldNumber]; ok && v.Kind == KindInt {
		emp.Number = v.Int
	}
	if raw := c.Text(FieldBirthDate); raw != "" {
		if d, err := time.Parse(birthDateLayout, raw); err == nil {
			emp.BirthDate = &d
		}
	}
	return emp
}

func (c Cleaned) optional(f Field) *string {
	s := c.Text(f)
	if s == "" {
		return nil
	}
	return &s
}

// ValidateEmployee runs a single employee through the catalog as a one-row batch.
func (b *BatchValidator) ValidateEmployee(row Row) *BatchResult {
	return b.Validate([]Row{row}, false)
}

// RowFromEmployee builds an import row from an employee and its roles so single
// creates and updates share the import rules.
func RowFromEmployee(emp models.Employee, roles []models.Role) Row {
	row := Row{}
	set := func(f Field, v Value) {
		row[f.Key()] = Cell{Value: v, RowIndex: 0, ColIndex: int(f)}
	}
	set(FieldFirstName, String(emp.FirstName))
	set(FieldLastName, String(emp.LastName))
	set(FieldEmail, String(emp.Email))
	set(FieldGender, String(string(emp.Gender)))
	set(FieldContractType, String(string(emp.ContractType)))
	set(FieldNumber, Int(emp.Number))
	if emp.PhoneNumber != nil {
		set(FieldPhoneNumber, String(*emp.PhoneNumber))
	}
	if emp.Address != nil {
		set(FieldAddress, String(*emp.Address))
	}
	if emp.CNSSNumber != nil {
		set(FieldCNSSNumber, String(*emp.CNSSNumber))
	}
	if emp.BirthDate != nil {
		set(FieldBirthDate, String(emp.BirthDate.Format(birthDateLayout)))
	}
	tokens := make([]string, len(roles))
	for i, r := range roles {
		tokens[i] = string(r)
	}
	set(FieldJobPosition, List(tokens))
	return row
}
