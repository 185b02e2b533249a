package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/tahfidz-admin-api/pkg/errors"
	"github.com/noah-isme/tahfidz-admin-api/pkg/export"
	"github.com/noah-isme/tahfidz-admin-api/pkg/storage"
)

type reportStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (io.ReadCloser, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type tableRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

var reportHeaders = []string{"Row", "Status", "Student", "NIS", "Student Email", "Guardian Email", "Message"}

// ImportReportConfig tunes report archiving.
type ImportReportConfig struct {
	APIPrefix string
}

// ImportReportService archives per-row import outcomes as CSV behind signed download links.
// Reports never contain passwords.
type ImportReportService struct {
	storage reportStorage
	csv     tableRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ImportReportConfig
	now     func() time.Time
}

// NewImportReportService constructs an ImportReportService.
func NewImportReportService(store reportStorage, signer *storage.SignedURLSigner, cfg ImportReportConfig, logger *zap.Logger, csv tableRenderer) *ImportReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	return &ImportReportService{
		storage: store,
		csv:     csv,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Store renders the outcomes of one batch and returns a signed download URL.
func (s *ImportReportService) Store(_ context.Context, batchID string, outcomes []RowOutcome) (string, error) {
	if s == nil {
		return "", nil
	}
	payload, err := s.csv.Render(reportDataset(outcomes))
	if err != nil {
		return "", fmt.Errorf("render import report: %w", err)
	}

	relPath, err := s.storage.Save(s.buildFilename(batchID), payload)
	if err != nil {
		return "", fmt.Errorf("save import report: %w", err)
	}

	token, _, err := s.signer.Generate(batchID, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return "", fmt.Errorf("sign import report: %w", err)
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Debug("import report stored", zap.String("batch_id", batchID), zap.String("path", relPath))
	return fmt.Sprintf("%s/admin/students/import/reports/%s", prefix, token), nil
}

// Open resolves a download token to the stored report. Expired or tampered tokens are rejected.
func (s *ImportReportService) Open(token string) (io.ReadCloser, string, error) {
	batchID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "report link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid report link")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	return file, fmt.Sprintf("import-report-%s.csv", sanitizeFilename(batchID)), nil
}

// Cleanup removes reports older than the signed link lifetime.
func (s *ImportReportService) Cleanup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	removed, err := s.storage.CleanupOlderThan(s.signer.TTL())
	if err != nil {
		return fmt.Errorf("cleanup import reports: %w", err)
	}
	if len(removed) > 0 {
		s.logger.Info("import reports removed", zap.Int("count", len(removed)))
	}
	return nil
}

func (s *ImportReportService) buildFilename(batchID string) string {
	now := s.now().UTC()
	return path.Join(now.Format("2006"), now.Format("01"), sanitizeFilename(batchID)+".csv")
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func reportDataset(outcomes []RowOutcome) export.Dataset {
	rows := make([]map[string]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		row := map[string]string{
			"Row":     strconv.Itoa(outcome.Line),
			"Status":  string(outcome.Status),
			"Student": outcome.StudentName,
			"NIS":     outcome.NIS,
		}
		if outcome.Result != nil {
			if acct := outcome.Result.Student.Account; acct != nil {
				row["Student Email"] = acct.Email
			}
			if acct := outcome.Result.Guardian.Account; acct != nil {
				row["Guardian Email"] = acct.Email
			}
		}
		if outcome.Err != nil {
			row["Message"] = outcome.Err.Message
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: reportHeaders, Rows: rows}
}
