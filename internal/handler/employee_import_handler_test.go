package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hr-admin-api/internal/dto"
	"github.com/noah-isme/hr-admin-api/internal/importer"
	"github.com/noah-isme/hr-admin-api/internal/service"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
)

type fakeImportSrv struct {
	importReq  dto.EmployeeImportRequest
	importErr  error
	fileBody   string
	fileForce  bool
	actor      service.Actor
	reportBody []byte
	reportErr  error
}

func (f *fakeImportSrv) Schema() dto.ImportSchemaResponse {
	return dto.ImportSchemaResponse{Fields: []importer.FieldSpec{{Key: "email"}}}
}

func (f *fakeImportSrv) Validate(_ context.Context, req dto.EmployeeImportRequest) (*dto.EmployeeImportValidation, error) {
	return &dto.EmployeeImportValidation{Valid: true, Rows: len(req.Lines)}, nil
}

func (f *fakeImportSrv) ValidateFile(_ context.Context, file io.Reader, force bool) (*dto.EmployeeImportValidation, error) {
	body, _ := io.ReadAll(file)
	f.fileBody = string(body)
	f.fileForce = force
	return &dto.EmployeeImportValidation{Valid: true}, nil
}

func (f *fakeImportSrv) Import(_ context.Context, actor service.Actor, req dto.EmployeeImportRequest) (*dto.EmployeeImportResponse, error) {
	f.importReq = req
	f.actor = actor
	if f.importErr != nil {
		return nil, f.importErr
	}
	return &dto.EmployeeImportResponse{Inserted: len(req.Lines)}, nil
}

func (f *fakeImportSrv) ImportFile(_ context.Context, actor service.Actor, file io.Reader, force bool) (*dto.EmployeeImportResponse, error) {
	body, _ := io.ReadAll(file)
	f.fileBody = string(body)
	f.fileForce = force
	f.actor = actor
	return &dto.EmployeeImportResponse{Inserted: 1}, nil
}

func (f *fakeImportSrv) Report(context.Context, string) ([]byte, string, error) {
	return f.reportBody, "import-report.csv", f.reportErr
}

func multipartContext(t *testing.T, target, content string, fields map[string]string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "employees.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, target, &buf)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	return c, rec
}

func TestImportHandlerImportJSON(t *testing.T) {
	srv := &fakeImportSrv{}
	handler := NewEmployeeImportHandler(srv, 0)

	body := map[string]interface{}{
		"lines":       []map[string]interface{}{{"email": map[string]interface{}{"value": "a@corp.tn", "rowIndex": 1, "columnIndex": 2}}},
		"forceUpload": true,
	}
	c, rec := newTestContext(http.MethodPost, "/employees/import", body)
	withClaims(c, "hr-1")
	handler.Import(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, srv.importReq.Lines, 1)
	assert.True(t, srv.importReq.ForceUpload)
	assert.Equal(t, "hr-1", srv.actor.ID)
}

func TestImportHandlerRejectionCarriesDetails(t *testing.T) {
	rejection := &importer.Rejection{Errors: "2,3,Wrong Email format", ReportURL: "/reports/abc"}
	srv := &fakeImportSrv{importErr: appErrors.WithDetails(appErrors.ErrImportRejected, rejection)}
	handler := NewEmployeeImportHandler(srv, 0)

	c, rec := newTestContext(http.MethodPost, "/employees/import", map[string]interface{}{"lines": []interface{}{}})
	handler.Import(c)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, appErrors.ErrImportRejected.Code, envelope.Error.Code)
	assert.Equal(t, "2,3,Wrong Email format", envelope.Error.Details["errors"])
	assert.Equal(t, "/reports/abc", envelope.Error.Details["reportUrl"])
}

func TestImportHandlerImportFileReadsForceFlag(t *testing.T) {
	srv := &fakeImportSrv{}
	handler := NewEmployeeImportHandler(srv, 0)

	c, rec := multipartContext(t, "/employees/import/file", "Email\na@corp.tn\n", map[string]string{"forceUpload": "true"})
	handler.ImportFile(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Email\na@corp.tn\n", srv.fileBody)
	assert.True(t, srv.fileForce)
}

func TestImportHandlerFileTooLarge(t *testing.T) {
	handler := NewEmployeeImportHandler(&fakeImportSrv{}, 64)

	c, rec := multipartContext(t, "/employees/import/file", string(bytes.Repeat([]byte("x"), 1024)), nil)
	handler.ImportFile(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestImportHandlerFileMissing(t *testing.T) {
	handler := NewEmployeeImportHandler(&fakeImportSrv{}, 0)

	c, rec := newTestContext(http.MethodPost, "/employees/import/file/validate", nil)
	handler.ValidateFile(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportHandlerValidate(t *testing.T) {
	handler := NewEmployeeImportHandler(&fakeImportSrv{}, 0)

	body := map[string]interface{}{"lines": []map[string]interface{}{{}, {}}}
	c, rec := newTestContext(http.MethodPost, "/employees/import/validate", body)
	handler.Validate(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Data["valid"])
	assert.Equal(t, float64(2), envelope.Data["rows"])
}

func TestImportHandlerReportDownload(t *testing.T) {
	handler := NewEmployeeImportHandler(&fakeImportSrv{reportBody: []byte("row,col,message\n")}, 0)

	c, rec := newTestContext(http.MethodGet, "/employees/import/reports/tok", nil)
	c.Params = append(c.Params, ginParam("token", "tok"))
	handler.Report(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "import-report.csv")
	assert.Equal(t, "row,col,message\n", rec.Body.String())
}

func TestImportHandlerReportInvalidToken(t *testing.T) {
	handler := NewEmployeeImportHandler(&fakeImportSrv{reportErr: appErrors.ErrTokenInvalid}, 0)

	c, rec := newTestContext(http.MethodGet, "/employees/import/reports/bad", nil)
	handler.Report(c)

	assert.Equal(t, appErrors.ErrTokenInvalid.Status, rec.Code)
}

func TestImportHandlerSchema(t *testing.T) {
	handler := NewEmployeeImportHandler(&fakeImportSrv{}, 0)

	c, rec := newTestContext(http.MethodGet, "/employees/import/schema", nil)
	handler.Schema(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email"`)
}
