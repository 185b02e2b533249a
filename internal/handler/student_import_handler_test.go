package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tahfidz-admin-api/internal/dto"
	"github.com/noah-isme/tahfidz-admin-api/internal/service"
	appErrors "github.com/noah-isme/tahfidz-admin-api/pkg/errors"
)

type importerStub struct {
	got    *service.ImportRequest
	result *service.ImportResult
	err    error
}

func (s *importerStub) Import(_ context.Context, req service.ImportRequest) (*service.ImportResult, error) {
	s.got = &req
	return s.result, s.err
}

type parserStub struct {
	filename string
	content  string
	rows     []dto.ImportRow
	err      error
}

func (s *parserStub) Parse(filename string, r io.Reader) ([]dto.ImportRow, error) {
	s.filename = filename
	body, _ := io.ReadAll(r)
	s.content = string(body)
	return s.rows, s.err
}

type reportOpenerStub struct {
	body string
	err  error
}

func (s reportOpenerStub) Open(token string) (io.ReadCloser, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), "import-report-" + token + ".csv", nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func okResult() *service.ImportResult {
	return &service.ImportResult{
		BatchID: "batch-1",
		StudentImportResponse: dto.StudentImportResponse{
			Message:     "Import completed",
			Stats:       dto.ImportStats{Success: 1, Failed: 1, Total: 2},
			NewAccounts: []dto.NewAccount{{Name: "Ahmad", Role: "STUDENT", Email: "ahmad.2024001@siswa.tahfidz.sch.id", Password: "0012345678"}},
			Errors:      []string{`Row 2: class "9Z" not found`},
		},
	}
}

func newImportHandlerForTest(importer *importerStub, parser *parserStub, reports ReportOpener) *StudentImportHandler {
	return NewStudentImportHandler(importer, parser, service.NewCredentialExportService(nil), reports, 1<<20, nil)
}

func TestStudentImportHandlerImportPartialSuccess(t *testing.T) {
	importer := &importerStub{result: okResult()}
	h := newImportHandlerForTest(importer, &parserStub{}, nil)

	body := []byte(`{"data":[{"student":{"nama":"Ahmad","nisn":12345},"orangtua":{"nama":"Budi"}},{"student":{"nama":"Siti"},"orangtua":{}}]}`)
	c, w := newGinContext(http.MethodPost, "/admin/students/import", body)
	h.Import(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, importer.got)
	assert.Len(t, importer.got.Rows, 2)
	assert.True(t, importer.got.AutoCreateAccount)
	assert.Equal(t, "12345", importer.got.Rows[0].Student.NISN.String())

	var resp dto.StudentImportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Import completed", resp.Message)
	assert.Equal(t, 2, resp.Stats.Total)
	assert.Len(t, resp.NewAccounts, 1)
	assert.Equal(t, []string{`Row 2: class "9Z" not found`}, resp.Errors)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestStudentImportHandlerDryRunFlag(t *testing.T) {
	importer := &importerStub{result: okResult()}
	h := newImportHandlerForTest(importer, &parserStub{}, nil)

	c, w := newGinContext(http.MethodPost, "/admin/students/import", []byte(`{"data":[{"student":{"nama":"A"}}],"autoCreateAccount":false}`))
	h.Import(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, importer.got.AutoCreateAccount)
}

func TestStudentImportHandlerRejectsMalformedPayload(t *testing.T) {
	cases := map[string]string{
		"not an array": `{"data":{"student":{}}}`,
		"empty array":  `{"data":[]}`,
		"missing data": `{}`,
		"not json":     `data=1`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			importer := &importerStub{result: okResult()}
			h := newImportHandlerForTest(importer, &parserStub{}, nil)
			c, w := newGinContext(http.MethodPost, "/admin/students/import", []byte(body))
			h.Import(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, importer.got)
		})
	}
}

func TestStudentImportHandlerUnexpectedFailure(t *testing.T) {
	importer := &importerStub{err: errors.New("connection refused")}
	h := newImportHandlerForTest(importer, &parserStub{}, nil)

	c, w := newGinContext(http.MethodPost, "/admin/students/import", []byte(`{"data":[{"student":{"nama":"A"}}]}`))
	h.Import(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "failed to import data: connection refused")
}

func TestStudentImportHandlerBatchTooLarge(t *testing.T) {
	importer := &importerStub{err: appErrors.Clone(appErrors.ErrPayloadTooLarge, "import is limited to 2000 rows per batch")}
	h := newImportHandlerForTest(importer, &parserStub{}, nil)

	c, w := newGinContext(http.MethodPost, "/admin/students/import", []byte(`{"data":[{"student":{"nama":"A"}}]}`))
	h.Import(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func multipartRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req, _ := http.NewRequest(http.MethodPost, "/admin/students/import/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestStudentImportHandlerUpload(t *testing.T) {
	importer := &importerStub{result: okResult()}
	parser := &parserStub{rows: []dto.ImportRow{{Line: 2}, {Line: 4}}}
	h := newImportHandlerForTest(importer, parser, nil)

	c, w := newGinContext(http.MethodPost, "/", nil)
	c.Request = multipartRequest(t, "siswa baru.csv", "nama,nisn\nAhmad,1\n", map[string]string{"autoCreateAccount": "false"})
	h.Upload(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "siswa baru.csv", parser.filename)
	assert.Equal(t, "nama,nisn\nAhmad,1\n", parser.content)
	require.NotNil(t, importer.got)
	assert.Equal(t, 4, importer.got.Rows[1].Line)
	assert.False(t, importer.got.AutoCreateAccount)
}

func TestStudentImportHandlerUploadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		importer := &importerStub{result: okResult()}
		h := newImportHandlerForTest(importer, &parserStub{}, nil)
		c, w := newGinContext(http.MethodPost, "/", nil)
		c.Request = multipartRequest(t, "", "", map[string]string{"autoCreateAccount": "true"})
		h.Upload(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, importer.got)
	})

	t.Run("bad flag", func(t *testing.T) {
		importer := &importerStub{result: okResult()}
		h := newImportHandlerForTest(importer, &parserStub{}, nil)
		c, w := newGinContext(http.MethodPost, "/", nil)
		c.Request = multipartRequest(t, "a.csv", "x", map[string]string{"autoCreateAccount": "maybe"})
		h.Upload(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("parser rejects sheet", func(t *testing.T) {
		importer := &importerStub{result: okResult()}
		parser := &parserStub{err: appErrors.Clone(appErrors.ErrValidation, "file must be .xlsx or .csv")}
		h := newImportHandlerForTest(importer, parser, nil)
		c, w := newGinContext(http.MethodPost, "/", nil)
		c.Request = multipartRequest(t, "a.txt", "x", nil)
		h.Upload(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "file must be .xlsx or .csv")
		assert.Nil(t, importer.got)
	})
}

func TestStudentImportHandlerExportCredentials(t *testing.T) {
	h := newImportHandlerForTest(&importerStub{}, &parserStub{}, nil)

	payload, _ := json.Marshal(dto.CredentialExportRequest{Accounts: okResult().NewAccounts})
	c, w := newGinContext(http.MethodPost, "/admin/students/import/credentials?format=csv", payload)
	h.ExportCredentials(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `.csv"`)
	assert.Contains(t, w.Body.String(), "ahmad.2024001@siswa.tahfidz.sch.id,0012345678")
}

func TestStudentImportHandlerExportCredentialsRejectsUnknownFormat(t *testing.T) {
	h := newImportHandlerForTest(&importerStub{}, &parserStub{}, nil)

	payload, _ := json.Marshal(dto.CredentialExportRequest{Accounts: okResult().NewAccounts})
	c, w := newGinContext(http.MethodPost, "/admin/students/import/credentials?format=odt", payload)
	h.ExportCredentials(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentImportHandlerDownloadReport(t *testing.T) {
	h := newImportHandlerForTest(&importerStub{}, &parserStub{}, reportOpenerStub{body: "Row,Status\n2,SUCCEEDED\n"})

	c, w := newGinContext(http.MethodGet, "/admin/students/import/reports/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	h.DownloadReport(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Row,Status\n2,SUCCEEDED\n", w.Body.String())
	assert.Equal(t, `attachment; filename="import-report-tok.csv"`, w.Header().Get("Content-Disposition"))
}

func TestStudentImportHandlerDownloadReportErrors(t *testing.T) {
	disabled := newImportHandlerForTest(&importerStub{}, &parserStub{}, nil)
	c, w := newGinContext(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	disabled.DownloadReport(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	expired := newImportHandlerForTest(&importerStub{}, &parserStub{}, reportOpenerStub{err: appErrors.Clone(appErrors.ErrForbidden, "report link expired")})
	c, w = newGinContext(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	expired.DownloadReport(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
