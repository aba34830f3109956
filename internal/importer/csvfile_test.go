package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestParseCSVMapsHeadersByKeyOrLabel(t *testing.T) {
	data := "\xEF\xBB\xBFFirst Name,last_name,E-mail,Employee Number,Notes\n" +
		"Amira,Ben Salah,amira@example.com,12,ignored\n" +
		",,,,\n" +
		"Karim,Trabelsi,karim@example.com,13\n"

	sheet, err := NewCatalog().ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)

	assert.Equal(t, "first_name", sheet.Headers[0].Key)
	assert.Equal(t, "last_name", sheet.Headers[1].Key)
	assert.Equal(t, "email", sheet.Headers[2].Key)
	assert.Equal(t, "number", sheet.Headers[3].Key)
	assert.Empty(t, sheet.Headers[4].Key)

	first := sheet.Rows[0]
	assert.Equal(t, Cell{Value: String("Amira"), RowIndex: 0, ColIndex: 0}, first["first_name"])
	assert.Equal(t, String("12"), first["number"].Value)
	_, hasNotes := first["notes"]
	assert.False(t, hasNotes)

	second := sheet.Rows[1]
	assert.Equal(t, 2, second["email"].RowIndex)
	assert.Equal(t, 2, second["email"].ColIndex)
}

func TestParseCSVSemicolonAndWindows1252(t *testing.T) {
	utf := "Prénom;Last Name;Email\nRené;Côté;rene@example.com\n"
	encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte(utf))
	require.NoError(t, err)

	sheet, err := NewCatalog().ParseCSV(bytes.NewReader(encoded))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)

	assert.Empty(t, sheet.Headers[0].Key)
	assert.Equal(t, String("Côté"), sheet.Rows[0]["last_name"].Value)
	assert.Equal(t, String("rene@example.com"), sheet.Rows[0]["email"].Value)
}

func TestParseCSVRejectsUnknownHeader(t *testing.T) {
	_, err := NewCatalog().ParseCSV(strings.NewReader("foo,bar\n1,2\n"))
	assert.ErrorIs(t, err, ErrNoKnownColumns)

	_, err = NewCatalog().ParseCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoKnownColumns)
}

func TestParsedSheetFeedsBatchValidator(t *testing.T) {
	data := "first_name,last_name,email,job_position,contract_type,cnss_number,gender,number\n" +
		"Amira,Ben Salah,amira@example.com,\"Admin,HR\",CDI,12345678-90,Female,12\n"
	catalog := NewCatalog()
	sheet, err := catalog.ParseCSV(strings.NewReader(data))
	require.NoError(t, err)

	res := NewBatchValidator(catalog).Validate(sheet.Rows, false)
	assert.False(t, res.Rejected(), res.Errors)
	assert.Equal(t, []string{"Admin", "HR"}, res.Roles["amira@example.com"])
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "employee_number", normalizeHeader(" Employee  Number "))
	assert.Equal(t, "e_mail", normalizeHeader("E-mail"))
	assert.Equal(t, "cnss_number", normalizeHeader("CNSS Number"))
	assert.Equal(t, "prenom", normalizeHeader("Prénom"))
}

func TestParseCSVRowIndexFollowsSourceLines(t *testing.T) {
	data := "First Name,Last Name,Email\n" +
		"Amira,Ben Salah,amira@example.com\n" +
		"\n" +
		",,\n" +
		"Karim,Trabelsi,not-an-email\n"

	sheet, err := NewCatalog().ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, 0, sheet.Rows[0]["email"].RowIndex)
	assert.Equal(t, 3, sheet.Rows[1]["email"].RowIndex)

	res := NewBatchValidator(NewCatalog()).Validate(sheet.Rows, false)
	require.True(t, res.Rejected())
	assert.Contains(t, strings.Join(res.Errors, "\n"), "Line 4:")
}
