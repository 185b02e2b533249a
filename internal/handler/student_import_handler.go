package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/tahfidz-admin-api/internal/dto"
	"github.com/noah-isme/tahfidz-admin-api/internal/middleware"
	"github.com/noah-isme/tahfidz-admin-api/internal/service"
	appErrors "github.com/noah-isme/tahfidz-admin-api/pkg/errors"
	"github.com/noah-isme/tahfidz-admin-api/pkg/response"
)

type studentImporter interface {
	Import(ctx context.Context, req service.ImportRequest) (*service.ImportResult, error)
}

type spreadsheetParser interface {
	Parse(filename string, r io.Reader) ([]dto.ImportRow, error)
}

type credentialRenderer interface {
	Render(format string, req dto.CredentialExportRequest) (*service.CredentialFile, error)
}

// ReportOpener resolves a signed report token to its stored CSV.
type ReportOpener interface {
	Open(token string) (io.ReadCloser, string, error)
}

// StudentImportHandler exposes the bulk student/guardian provisioning endpoints.
type StudentImportHandler struct {
	importer       studentImporter
	parser         spreadsheetParser
	credentials    credentialRenderer
	reports        ReportOpener
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewStudentImportHandler constructs the handler. reports may be nil when archiving is disabled.
func NewStudentImportHandler(importer studentImporter, parser spreadsheetParser, credentials credentialRenderer, reports ReportOpener, maxUploadBytes int64, logger *zap.Logger) *StudentImportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 5 << 20
	}
	return &StudentImportHandler{
		importer:       importer,
		parser:         parser,
		credentials:    credentials,
		reports:        reports,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Import godoc
// @Summary Import students and guardians
// @Description Validates every row, provisions student and guardian accounts and returns the new credentials once. Rows fail independently; partial success still answers 200.
// @Tags Student Import
// @Accept json
// @Produce json
// @Param payload body dto.StudentImportRequest true "Rows to import"
// @Success 200 {object} dto.StudentImportResponse
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /admin/students/import [post]
func (h *StudentImportHandler) Import(c *gin.Context) {
	var req dto.StudentImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "import data must be a non-empty array"))
		return
	}
	if len(req.Data) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "import data must be a non-empty array"))
		return
	}
	h.run(c, req.Data, req.AutoCreate())
}

// Upload godoc
// @Summary Import students from a spreadsheet
// @Description Accepts an .xlsx or .csv sheet whose header row names the columns. Error lines refer to sheet rows.
// @Tags Student Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Spreadsheet"
// @Param autoCreateAccount formData bool false "Create accounts (default true)"
// @Success 200 {object} dto.StudentImportResponse
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /admin/students/import/upload [post]
func (h *StudentImportHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes)))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}

	autoCreate := true
	if raw := strings.TrimSpace(c.PostForm("autoCreateAccount")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "autoCreateAccount must be true or false"))
			return
		}
		autoCreate = parsed
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file"))
		return
	}
	defer file.Close()

	rows, err := h.parser.Parse(filepath.Base(header.Filename), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.run(c, rows, autoCreate)
}

func (h *StudentImportHandler) run(c *gin.Context, rows []dto.ImportRow, autoCreate bool) {
	result, err := h.importer.Import(c.Request.Context(), service.ImportRequest{Rows: rows, AutoCreateAccount: autoCreate})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			response.Error(c, appErr)
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import data: "+err.Error()))
		return
	}

	fields := []zap.Field{zap.String("batch_id", result.BatchID), zap.Int("rows", len(rows))}
	if claims, ok := middleware.CurrentClaims(c); ok {
		fields = append(fields, zap.String("actor_id", claims.UserID))
	}
	h.logger.Info("student import request served", fields...)

	response.Raw(c, http.StatusOK, result.StudentImportResponse)
}

// ExportCredentials godoc
// @Summary Download new account credentials
// @Description Renders the newAccounts list of an import into a sheet. The file is streamed and never stored.
// @Tags Student Import
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,text/csv,application/pdf
// @Param format query string false "xlsx (default), csv or pdf"
// @Param payload body dto.CredentialExportRequest true "Accounts returned by the import"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /admin/students/import/credentials [post]
func (h *StudentImportHandler) ExportCredentials(c *gin.Context) {
	var req dto.CredentialExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid credential export payload"))
		return
	}
	file, err := h.credentials.Render(c.Query("format"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// DownloadReport godoc
// @Summary Download an import row report
// @Tags Student Import
// @Produce text/csv
// @Param token path string true "Signed report token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/students/import/reports/{token} [get]
func (h *StudentImportHandler) DownloadReport(c *gin.Context) {
	if h.reports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "import reports are disabled"))
		return
	}
	file, filename, err := h.reports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, -1, "text/csv", file, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, filename),
	})
}
