package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

const (
	msgEmail       = "Wrong Email format"
	msgNumber      = "It should be an integer >= 0"
	msgBirthDate   = "Date format should be yyyy-mm-dd"
	msgCNSS        = "CNSS number is required and must match format 'XXXXXXXX-XX' for CDI or CDD contracts. For SIVP or APPRENTI, it must be empty."
	msgPhoneNumber = "Phone number is not valid for Tunisia. It should be of 8 digits"

	birthDateLayout = "2006-01-02"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	cnssPattern  = regexp.MustCompile(`^[0-9]{8}-[0-9]{2}$`)
	phonePattern = regexp.MustCompile(`^(?:\+216)?([24579][0-9]{7})$`)
)

func possibleValues(options []string) string {
	return "Possible values are: [" + strings.Join(options, ", ") + "]"
}

func validateEmail(_ Cleaned, raw Value) (Value, bool) {
	if raw.Kind != KindString || !emailPattern.MatchString(raw.Str) {
		return Null(), false
	}
	return raw, true
}

func validateGender(_ Cleaned, raw Value) (Value, bool) {
	return matchOption(raw, genderOptions())
}

func validateContractType(_ Cleaned, raw Value) (Value, bool) {
	return matchOption(raw, contractOptions())
}

func matchOption(raw Value, options []string) (Value, bool) {
	if raw.Kind != KindString {
		return Null(), false
	}
	for _, opt := range options {
		if strings.EqualFold(opt, raw.Str) {
			return String(opt), true
		}
	}
	return Null(), false
}

func validateNumber(_ Cleaned, raw Value) (Value, bool) {
	switch raw.Kind {
	case KindInt:
		if raw.Int < 0 {
			return Null(), false
		}
		return raw, true
	case KindString:
		n, err := strconv.ParseInt(raw.Str, 10, 64)
		if err != nil || n < 0 {
			return Null(), false
		}
		return Int(n), true
	default:
		return Null(), false
	}
}

func validateBirthDate(_ Cleaned, raw Value) (Value, bool) {
	if raw.Kind != KindString {
		return Null(), false
	}
	d, err := time.Parse(birthDateLayout, raw.Str)
	if err != nil {
		return Null(), false
	}
	return String(d.Format(birthDateLayout)), true
}

// validateCNSS checks the social security number against the contract type
// already cleaned on the row.
func validateCNSS(row Cleaned, raw Value) (Value, bool) {
	var cnss string
	switch raw.Kind {
	case KindNull:
	case KindString:
		cnss = strings.TrimSpace(raw.Str)
	default:
		return Null(), false
	}

	contract := models.ContractType(row.Text(FieldContractType))
	switch {
	case contract.RequiresCNSS():
		if cnss == "" || !cnssPattern.MatchString(cnss) {
			return Null(), false
		}
		return String(cnss), true
	case contract.ForbidsCNSS():
		if cnss != "" {
			return Null(), false
		}
		return Null(), true
	default:
		if cnss == "" {
			return Null(), true
		}
		if !cnssPattern.MatchString(cnss) {
			return Null(), false
		}
		return String(cnss), true
	}
}

// validatePhoneNumber accepts a national mobile number with or without the
// +216 prefix and normalizes it to its 8 digits.
func validatePhoneNumber(_ Cleaned, raw Value) (Value, bool) {
	var s string
	switch raw.Kind {
	case KindString:
		s = strings.ReplaceAll(raw.Str, " ", "")
	case KindInt:
		s = strconv.FormatInt(raw.Int, 10)
	default:
		return Null(), false
	}
	m := phonePattern.FindStringSubmatch(s)
	if m == nil {
		return Null(), false
	}
	return String(m[1]), true
}

// validateJobPosition requires every comma separated token to name a role.
func validateJobPosition(_ Cleaned, raw Value) (Value, bool) {
	var tokens []string
	switch raw.Kind {
	case KindString:
		tokens = strings.Split(raw.Str, ",")
	case KindList:
		tokens = raw.List
	default:
		return Null(), false
	}

	roles := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		role, ok := models.ParseRole(token)
		if !ok {
			return Null(), false
		}
		roles = append(roles, string(role))
	}
	if len(roles) == 0 {
		return Null(), false
	}
	return List(roles), true
}
