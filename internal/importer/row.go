package importer

import "fmt"

// WrongCell points at a rejected cell in the source sheet.
// ColIndex is -1 when the whole column is missing from the row.
type WrongCell struct {
	ErrorMessage string `json:"errorMessage"`
	RowIndex     int    `json:"rowIndex"`
	ColIndex     int    `json:"colIndex"`
}

// RowResult is the outcome of validating one row.
type RowResult struct {
	Cleaned    Cleaned
	Errors     []string
	Warnings   []string
	WrongCells []WrongCell
}

// RowValidator cleans a single row against the catalog.
type RowValidator struct {
	catalog *Catalog
}

// NewRowValidator constructs a row validator.
func NewRowValidator(catalog *Catalog) *RowValidator {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &RowValidator{catalog: catalog}
}

func missingMessage(spec FieldSpec) string {
	return fmt.Sprintf("Missing mandatory field: %s", spec.Label)
}

// Validate cleans the row. Unconditional fields are evaluated first, in
// catalog order, so conditional predicates always see their dependencies.
// fallbackRow is reported for missing columns when the row has no cells at all.
func (v *RowValidator) Validate(row Row, fallbackRow int) RowResult {
	res := RowResult{Cleaned: make(Cleaned, fieldCount)}
	anchor := anchorRow(row, fallbackRow)

	specs := v.catalog.specs
	for _, spec := range specs {
		if !spec.Conditional() {
			v.check(spec, row, anchor, &res)
		}
	}
	for _, spec := range specs {
		if spec.Conditional() {
			v.check(spec, row, anchor, &res)
		}
	}
	return res
}

func (v *RowValidator) check(spec FieldSpec, row Row, anchor int, res *RowResult) {
	f := spec.Field
	cell, present := row[spec.Key]
	if !present {
		if v.catalog.IsMandatory(res.Cleaned, f) {
			res.fail(missingMessage(spec), true, anchor, -1)
		}
		res.Cleaned[f] = Null()
		return
	}

	value := cell.Value.Trimmed()
	mandatory := v.catalog.IsMandatory(res.Cleaned, f)

	// Conditional fields go through their validator even when blank so the
	// rule can explain why the value is required.
	if value.Empty() && !spec.Conditional() {
		if mandatory {
			res.fail(missingMessage(spec), true, cell.RowIndex, cell.ColIndex)
		}
		res.Cleaned[f] = Null()
		return
	}
	if value.Empty() {
		value = Null()
	}

	if spec.Validate == nil {
		res.Cleaned[f] = value
		return
	}

	normalized, ok := spec.Validate(res.Cleaned, value)
	if !ok {
		res.fail(spec.Message, mandatory, cell.RowIndex, cell.ColIndex)
		res.Cleaned[f] = Null()
		return
	}
	res.Cleaned[f] = normalized
}

func (r *RowResult) fail(msg string, asError bool, rowIndex, colIndex int) {
	if asError {
		r.Errors = append(r.Errors, msg)
	} else {
		r.Warnings = append(r.Warnings, msg)
	}
	r.WrongCells = append(r.WrongCells, WrongCell{ErrorMessage: msg, RowIndex: rowIndex, ColIndex: colIndex})
}

// anchorRow picks the sheet row of the first present cell in catalog order.
func anchorRow(row Row, fallback int) int {
	for _, f := range Fields() {
		if cell, ok := row[f.Key()]; ok {
			return cell.RowIndex
		}
	}
	return fallback
}
