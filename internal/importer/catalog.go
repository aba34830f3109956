package importer

import (
	"github.com/noah-isme/hr-admin-api/internal/models"
)

// Cleaned holds normalized values keyed by field.
type Cleaned map[Field]Value

// Text returns the textual form of a cleaned value, or "" when absent.
func (c Cleaned) Text(f Field) string {
	v, ok := c[f]
	if !ok {
		return ""
	}
	return v.Text()
}

// Predicate decides conditional mandatoriness from the row cleaned so far.
type Predicate func(row Cleaned) bool

// Validator normalizes a trimmed raw value. ok=false rejects the value.
type Validator func(row Cleaned, raw Value) (normalized Value, ok bool)

// FieldSpec describes how a single column is validated.
type FieldSpec struct {
	Field        Field     `json:"-"`
	Key          string    `json:"key"`
	Label        string    `json:"label"`
	Mandatory    bool      `json:"mandatory"`
	RequiredWhen Predicate `json:"-"`
	DependsOn    []Field   `json:"-"`
	Validate     Validator `json:"-"`
	Message      string    `json:"message,omitempty"`
	Type         string    `json:"type"`
	Options      []string  `json:"options,omitempty"`
	Condition    string    `json:"condition,omitempty"`
}

// Conditional reports whether mandatoriness depends on other fields.
func (s FieldSpec) Conditional() bool {
	return s.RequiredWhen != nil
}

// Catalog is the registry of field specs, built once and shared read-only.
type Catalog struct {
	specs []FieldSpec
}

// NewCatalog builds the employee import catalog.
func NewCatalog() *Catalog {
	fields := Fields()
	specs := make([]FieldSpec, 0, len(fields))
	for _, f := range fields {
		specs = append(specs, specFor(f))
	}
	return &Catalog{specs: specs}
}

// Specs returns the field specs in catalog order.
func (c *Catalog) Specs() []FieldSpec {
	out := make([]FieldSpec, len(c.specs))
	copy(out, c.specs)
	return out
}

// Spec returns the catalog entry for f.
func (c *Catalog) Spec(f Field) FieldSpec {
	return c.specs[f]
}

// IsMandatory is true for unconditionally mandatory fields and for conditional
// fields whose predicate holds on the row cleaned so far.
func (c *Catalog) IsMandatory(row Cleaned, f Field) bool {
	spec := c.specs[f]
	if spec.Mandatory {
		return true
	}
	return spec.RequiredWhen != nil && spec.RequiredWhen(row)
}

func specFor(f Field) FieldSpec {
	spec := FieldSpec{Field: f, Key: f.Key(), Label: f.Label(), Type: "text"}
	switch f {
	case FieldFirstName, FieldLastName:
		spec.Mandatory = true
	case FieldEmail:
		spec.Mandatory = true
		spec.Type = "email"
		spec.Validate = validateEmail
		spec.Message = msgEmail
	case FieldAddress:
	case FieldPhoneNumber:
		spec.Type = "phone"
		spec.Validate = validatePhoneNumber
		spec.Message = msgPhoneNumber
	case FieldJobPosition:
		spec.Mandatory = true
		spec.Type = "list"
		spec.Options = roleOptions()
		spec.Validate = validateJobPosition
		spec.Message = possibleValues(spec.Options)
	case FieldBirthDate:
		spec.Type = "date"
		spec.Validate = validateBirthDate
		spec.Message = msgBirthDate
	case FieldContractType:
		spec.Mandatory = true
		spec.Type = "enum"
		spec.Options = contractOptions()
		spec.Validate = validateContractType
		spec.Message = possibleValues(spec.Options)
	case FieldCNSSNumber:
		spec.RequiredWhen = requiresCNSS
		spec.DependsOn = []Field{FieldContractType}
		spec.Validate = validateCNSS
		spec.Message = msgCNSS
		spec.Condition = "mandatory when contract_type is CDI or CDD"
	case FieldGender:
		spec.Mandatory = true
		spec.Type = "enum"
		spec.Options = genderOptions()
		spec.Validate = validateGender
		spec.Message = possibleValues(spec.Options)
	case FieldNumber:
		spec.Mandatory = true
		spec.Type = "integer"
		spec.Validate = validateNumber
		spec.Message = msgNumber
	}
	return spec
}

func requiresCNSS(row Cleaned) bool {
	return models.ContractType(row.Text(FieldContractType)).RequiresCNSS()
}

func roleOptions() []string {
	roles := models.Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func contractOptions() []string {
	types := models.ContractTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func genderOptions() []string {
	genders := models.Genders()
	out := make([]string, len(genders))
	for i, g := range genders {
		out[i] = string(g)
	}
	return out
}
