package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/tahfidz-admin-api/internal/dto"
	appErrors "github.com/noah-isme/tahfidz-admin-api/pkg/errors"
	"github.com/noah-isme/tahfidz-admin-api/pkg/export"
)

// Credential sheet formats.
const (
	CredentialFormatXLSX = "xlsx"
	CredentialFormatCSV  = "csv"
	CredentialFormatPDF  = "pdf"
)

var credentialHeaders = []string{"Nama", "Role", "Email", "Password", "Keterangan"}

var credentialContentTypes = map[string]string{
	CredentialFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	CredentialFormatCSV:  "text/csv",
	CredentialFormatPDF:  "application/pdf",
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// CredentialFile is a rendered credential sheet ready for download.
type CredentialFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CredentialExportService renders the accounts returned by an import into a distributable sheet.
// Nothing is persisted; the caller streams the bytes straight back to the administrator.
type CredentialExportService struct {
	xlsx      tableRenderer
	csv       tableRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	now       func() time.Time
}

// NewCredentialExportService constructs the service with the default renderers.
func NewCredentialExportService(validate *validator.Validate) *CredentialExportService {
	if validate == nil {
		validate = validator.New()
	}
	return &CredentialExportService{
		xlsx:      export.NewXLSXExporter("Akun Baru"),
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(true),
		validator: validate,
		now:       time.Now,
	}
}

// Render produces the credential sheet in the requested format. An empty format means xlsx.
func (s *CredentialExportService) Render(format string, req dto.CredentialExportRequest) (*CredentialFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = CredentialFormatXLSX
	}
	contentType, ok := credentialContentTypes[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q; use xlsx, csv or pdf", format))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "newAccounts must list at least one complete account")
	}

	dataset := credentialDataset(req.Accounts)
	var (
		data []byte
		err  error
	)
	switch format {
	case CredentialFormatCSV:
		data, err = s.csv.Render(dataset)
	case CredentialFormatPDF:
		data, err = s.pdf.Render(dataset, "Akun Baru Siswa dan Wali")
	default:
		data, err = s.xlsx.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render credential sheet")
	}

	return &CredentialFile{
		Filename:    fmt.Sprintf("akun-baru-%s.%s", s.now().Format("20060102-150405"), format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func credentialDataset(accounts []dto.NewAccount) export.Dataset {
	rows := make([]map[string]string, 0, len(accounts))
	for _, acct := range accounts {
		rows = append(rows, map[string]string{
			"Nama":       acct.Name,
			"Role":       acct.Role,
			"Email":      acct.Email,
			"Password":   acct.Password,
			"Keterangan": acct.Note,
		})
	}
	return export.Dataset{Headers: credentialHeaders, Rows: rows}
}
