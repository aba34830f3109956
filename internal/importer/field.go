// Package importer validates spreadsheet rows of employees before they are stored.
package importer

import "strings"

// Field enumerates the importable employee columns in catalog order.
type Field int

const (
	FieldFirstName Field = iota
	FieldLastName
	FieldEmail
	FieldAddress
	FieldPhoneNumber
	FieldJobPosition
	FieldBirthDate
	FieldContractType
	FieldCNSSNumber
	FieldGender
	FieldNumber

	fieldCount
)

// Fields returns every field in catalog order.
func Fields() []Field {
	out := make([]Field, 0, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		out = append(out, f)
	}
	return out
}

// Key is the stable identifier used in payloads and storage.
func (f Field) Key() string {
	switch f {
	case FieldFirstName:
		return "first_name"
	case FieldLastName:
		return "last_name"
	case FieldEmail:
		return "email"
	case FieldAddress:
		return "address"
	case FieldPhoneNumber:
		return "phone_number"
	case FieldJobPosition:
		return "job_position"
	case FieldBirthDate:
		return "birth_date"
	case FieldContractType:
		return "contract_type"
	case FieldCNSSNumber:
		return "cnss_number"
	case FieldGender:
		return "gender"
	case FieldNumber:
		return "number"
	default:
		return ""
	}
}

// Label is the human readable column name.
func (f Field) Label() string {
	switch f {
	case FieldFirstName:
		return "First Name"
	case FieldLastName:
		return "Last Name"
	case FieldEmail:
		return "Email"
	case FieldAddress:
		return "Address"
	case FieldPhoneNumber:
		return "Phone Number"
	case FieldJobPosition:
		return "Job Position"
	case FieldBirthDate:
		return "Birth Date"
	case FieldContractType:
		return "Contract Type"
	case FieldCNSSNumber:
		return "CNSS Number"
	case FieldGender:
		return "Gender"
	case FieldNumber:
		return "Employee Number"
	default:
		return ""
	}
}

func (f Field) String() string { return f.Key() }

// ParseField resolves a field from its key.
func ParseField(key string) (Field, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, f := range Fields() {
		if f.Key() == key {
			return f, true
		}
	}
	return 0, false
}

// uniqueFields are checked for duplicates across rows of one batch.
var uniqueFields = []Field{FieldEmail, FieldNumber, FieldPhoneNumber, FieldCNSSNumber}
