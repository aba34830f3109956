package importer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	v, ok := validateEmail(nil, String("Jane.Doe@Example.com"))
	require.True(t, ok)
	assert.Equal(t, "Jane.Doe@Example.com", v.Str)

	for _, bad := range []Value{String("jane@"), String("jane@example"), String("@example.com"), Int(5)} {
		_, ok := validateEmail(nil, bad)
		assert.False(t, ok, bad.Text())
	}
}

func TestValidateEnumsNormalizeCase(t *testing.T) {
	v, ok := validateGender(nil, String("female"))
	require.True(t, ok)
	assert.Equal(t, "Female", v.Str)

	v, ok = validateContractType(nil, String("cdd"))
	require.True(t, ok)
	assert.Equal(t, "CDD", v.Str)

	_, ok = validateContractType(nil, String("freelance"))
	assert.False(t, ok)
}

func TestValidateNumber(t *testing.T) {
	v, ok := validateNumber(nil, String("0042"))
	require.True(t, ok)
	assert.Equal(t, Int(42), v)

	v, ok = validateNumber(nil, Int(7))
	require.True(t, ok)
	assert.Equal(t, int64(7), v.Int)

	for _, bad := range []Value{String("-1"), String("1.5"), String("abc"), Int(-3)} {
		_, ok := validateNumber(nil, bad)
		assert.False(t, ok, bad.Text())
	}
}

func TestValidateBirthDate(t *testing.T) {
	v, ok := validateBirthDate(nil, String("1990-02-28"))
	require.True(t, ok)
	assert.Equal(t, "1990-02-28", v.Str)

	for _, bad := range []string{"28/02/1990", "1990-02-30", "1990-2-3"} {
		_, ok := validateBirthDate(nil, String(bad))
		assert.False(t, ok, bad)
	}
}

func TestValidateCNSSByContract(t *testing.T) {
	cases := []struct {
		contract string
		cnss     Value
		ok       bool
		want     Value
	}{
		{"CDI", String("12345678-90"), true, String("12345678-90")},
		{"CDD", Null(), false, Null()},
		{"CDI", String("1234567890"), false, Null()},
		{"SIVP", Null(), true, Null()},
		{"APPRENTI", String("12345678-90"), false, Null()},
		{"STAGE", Null(), true, Null()},
		{"STAGE", String("12345678-90"), true, String("12345678-90")},
		{"STAGE", String("bad"), false, Null()},
		{"", String("12345678-90"), true, String("12345678-90")},
	}
	for _, tc := range cases {
		row := Cleaned{FieldContractType: String(tc.contract)}
		if tc.contract == "" {
			row[FieldContractType] = Null()
		}
		got, ok := validateCNSS(row, tc.cnss)
		assert.Equal(t, tc.ok, ok, "%s/%s", tc.contract, tc.cnss.Text())
		assert.Equal(t, tc.want, got, "%s/%s", tc.contract, tc.cnss.Text())
	}
}

func TestValidatePhoneNumber(t *testing.T) {
	v, ok := validatePhoneNumber(nil, String("+21620123456"))
	require.True(t, ok)
	assert.Equal(t, "20123456", v.Str)

	v, ok = validatePhoneNumber(nil, String("98 123 456"))
	require.True(t, ok)
	assert.Equal(t, "98123456", v.Str)

	v, ok = validatePhoneNumber(nil, Int(55123456))
	require.True(t, ok)
	assert.Equal(t, "55123456", v.Str)

	for _, bad := range []string{"30123456", "2012345", "+33612345678"} {
		_, ok := validatePhoneNumber(nil, String(bad))
		assert.False(t, ok, bad)
	}
}

func TestValidateJobPosition(t *testing.T) {
	v, ok := validateJobPosition(nil, String("admin, hr"))
	require.True(t, ok)
	assert.Equal(t, []string{"Admin", "HR"}, v.List)

	v, ok = validateJobPosition(nil, List([]string{"Accountant"}))
	require.True(t, ok)
	assert.Equal(t, []string{"Accountant"}, v.List)

	_, ok = validateJobPosition(nil, String("Admin,Manager"))
	assert.False(t, ok)

	_, ok = validateJobPosition(nil, String(" , "))
	assert.False(t, ok)
}

func TestValueUnmarshalJSON(t *testing.T) {
	var cells []Cell
	payload := `[{"value":"x","rowIndex":1,"columnIndex":2},{"value":12,"rowIndex":1,"columnIndex":3},{"value":null,"rowIndex":1,"columnIndex":4},{"value":["Admin","HR"],"rowIndex":1,"columnIndex":5},{"value":2.5,"rowIndex":1,"columnIndex":6}]`
	require.NoError(t, json.Unmarshal([]byte(payload), &cells))
	require.Len(t, cells, 5)

	assert.Equal(t, String("x"), cells[0].Value)
	assert.Equal(t, Int(12), cells[1].Value)
	assert.True(t, cells[2].Value.IsNull())
	assert.Equal(t, []string{"Admin", "HR"}, cells[3].Value.List)
	assert.Equal(t, String("2.5"), cells[4].Value)
	assert.Equal(t, 2, cells[0].ColIndex)
}
