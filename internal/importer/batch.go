package importer

import (
	"fmt"
	"sort"
	"strings"
)

// RejectedDetails is the status text returned with every rejected batch.
const RejectedDetails = "CSV file is not valid"

// RoleAssignments stages role tokens per employee email until storage
// assigns identifiers.
type RoleAssignments map[string][]string

// Emails returns the staged emails in a stable order.
func (r RoleAssignments) Emails() []string {
	out := make([]string, 0, len(r))
	for email := range r {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}

// Lookup finds the staged tokens for an email, ignoring case.
func (r RoleAssignments) Lookup(email string) []string {
	if tokens, ok := r[email]; ok {
		return tokens
	}
	for staged, tokens := range r {
		if strings.EqualFold(staged, email) {
			return tokens
		}
	}
	return nil
}

// BatchResult aggregates row results and cross-row findings for one upload.
type BatchResult struct {
	Records    []Cleaned
	Roles      RoleAssignments
	Errors     []string
	Warnings   []string
	WrongCells []WrongCell
	Force      bool
}

// Rejected reports whether the batch must not reach storage.
func (b *BatchResult) Rejected() bool {
	return len(b.Errors) > 0 || (len(b.Warnings) > 0 && !b.Force)
}

// Rejection is the payload returned to the caller for a rejected batch.
type Rejection struct {
	Errors     string      `json:"errors"`
	Warnings   string      `json:"warnings"`
	WrongCells []WrongCell `json:"wrongCells"`
	Details    string      `json:"details"`
	ReportURL  string      `json:"reportUrl,omitempty"`
}

// Rejection builds the caller facing payload. It returns nil for accepted batches.
func (b *BatchResult) Rejection() *Rejection {
	if !b.Rejected() {
		return nil
	}
	cells := b.WrongCells
	if cells == nil {
		cells = []WrongCell{}
	}
	return &Rejection{
		Errors:     strings.Join(b.Errors, "\n"),
		Warnings:   strings.Join(b.Warnings, "\n"),
		WrongCells: cells,
		Details:    RejectedDetails,
	}
}

// BatchValidator validates all rows of an upload.
type BatchValidator struct {
	rows *RowValidator
}

// NewBatchValidator constructs a batch validator over the catalog.
func NewBatchValidator(catalog *Catalog) *BatchValidator {
	return &BatchValidator{rows: NewRowValidator(catalog)}
}

// Validate runs every row in order, stages job positions and flags
// duplicates on the unique columns. Line numbers start at 1.
func (b *BatchValidator) Validate(rows []Row, force bool) *BatchResult {
	res := &BatchResult{
		Records: make([]Cleaned, 0, len(rows)),
		Roles:   RoleAssignments{},
		Force:   force,
	}

	for i, row := range rows {
		line := anchorRow(row, i) + 1
		rr := b.rows.Validate(row, i)
		if len(rr.Errors) > 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("Line %d: %s", line, strings.Join(rr.Errors, "; ")))
		}
		if len(rr.Warnings) > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Line %d: %s", line, strings.Join(rr.Warnings, "; ")))
		}
		res.WrongCells = append(res.WrongCells, rr.WrongCells...)

		cleaned := rr.Cleaned
		if positions, ok := cleaned[FieldJobPosition]; ok {
			if email := cleaned.Text(FieldEmail); email != "" && positions.Kind == KindList {
				res.Roles[email] = positions.List
			}
			delete(cleaned, FieldJobPosition)
		}
		res.Records = append(res.Records, cleaned)
	}

	b.flagDuplicates(rows, res)
	return res
}

// flagDuplicates compares raw trimmed values. Emails compare without case.
func (b *BatchValidator) flagDuplicates(rows []Row, res *BatchResult) {
	for _, f := range uniqueFields {
		seen := make(map[string]struct{}, len(rows))
		for _, row := range rows {
			cell, ok := row[f.Key()]
			if !ok {
				continue
			}
			value := cell.Value.Trimmed().Text()
			if value == "" {
				continue
			}
			key := value
			if f == FieldEmail {
				key = strings.ToLower(value)
			}
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				continue
			}
			msg := fmt.Sprintf("%s '%s' is duplicated", f.Label(), value)
			res.Errors = append(res.Errors, fmt.Sprintf("Line %d: %s", cell.RowIndex+1, msg))
			res.WrongCells = append(res.WrongCells, WrongCell{ErrorMessage: msg, RowIndex: cell.RowIndex, ColIndex: cell.ColIndex})
		}
	}
}
