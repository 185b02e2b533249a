package service

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
	appErrors "github.com/noah-isme/tahfidz-admin-api/pkg/errors"
	"github.com/noah-isme/tahfidz-admin-api/pkg/storage"
)

func newReportServiceForTest(t *testing.T) (*ImportReportService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewImportReportService(store, signer, ImportReportConfig{APIPrefix: "/api/v1/"}, zap.NewNop(), nil)
	svc.now = func() time.Time { return time.Date(2025, 7, 14, 8, 0, 0, 0, time.UTC) }
	return svc, dir
}

func sampleOutcomes() []RowOutcome {
	return []RowOutcome{
		{
			Index: 0, Line: 2, Status: RowSucceeded, StudentName: "Ahmad", NIS: "2024001",
			Result: &ProvisionResult{
				Student:  StudentRef{Account: &models.User{Email: "ahmad.2024001@siswa.tahfidz.sch.id"}, Password: "secret-student"},
				Guardian: GuardianRef{Account: &models.User{Email: "budi@wali.tahfidz.sch.id"}, Password: "secret-guardian", Created: true},
			},
		},
		{
			Index: 1, Line: 3, Status: RowDuplicate, StudentName: "Siti", NIS: "2024002",
			Err: &RowError{Kind: RowErrDuplicate, Line: 3, Message: `duplicate - NISN "0012" already registered`},
		},
	}
}

func TestImportReportServiceStoreAndOpen(t *testing.T) {
	svc, dir := newReportServiceForTest(t)

	url, err := svc.Store(context.Background(), "batch-1", sampleOutcomes())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/api/v1/admin/students/import/reports/"))

	_, err = os.Stat(filepath.Join(dir, "2025", "07", "batch-1.csv"))
	require.NoError(t, err)

	token := strings.TrimPrefix(url, "/api/v1/admin/students/import/reports/")
	file, filename, err := svc.Open(token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "import-report-batch-1.csv", filename)

	body, err := io.ReadAll(file)
	require.NoError(t, err)
	content := string(body)
	assert.Contains(t, content, "Row,Status,Student,NIS,Student Email,Guardian Email,Message")
	assert.Contains(t, content, "2,SUCCEEDED,Ahmad,2024001,ahmad.2024001@siswa.tahfidz.sch.id,budi@wali.tahfidz.sch.id,")
	assert.Contains(t, content, "3,DUPLICATE,Siti,2024002")
	assert.NotContains(t, content, "secret-student")
	assert.NotContains(t, content, "secret-guardian")
}

func TestImportReportServiceRejectsTamperedToken(t *testing.T) {
	svc, _ := newReportServiceForTest(t)
	url, err := svc.Store(context.Background(), "batch-1", sampleOutcomes())
	require.NoError(t, err)

	token := url[strings.LastIndex(url, "/")+1:]
	_, _, err = svc.Open(token + "0")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, _, err = svc.Open("garbage")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestImportReportServiceOpenMissingFile(t *testing.T) {
	svc, dir := newReportServiceForTest(t)
	url, err := svc.Store(context.Background(), "batch-1", sampleOutcomes())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "2025", "07", "batch-1.csv")))

	_, _, err = svc.Open(url[strings.LastIndex(url, "/")+1:])
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestImportReportServiceCleanupRemovesExpiredReports(t *testing.T) {
	svc, dir := newReportServiceForTest(t)
	_, err := svc.Store(context.Background(), "old-batch", sampleOutcomes())
	require.NoError(t, err)
	_, err = svc.Store(context.Background(), "fresh-batch", sampleOutcomes())
	require.NoError(t, err)

	oldPath := filepath.Join(dir, "2025", "07", "old-batch.csv")
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, stale, stale))

	require.NoError(t, svc.Cleanup(context.Background()))

	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "2025", "07", "fresh-batch.csv"))
	assert.NoError(t, err)
}

func TestImportReportServiceNilIsNoop(t *testing.T) {
	var svc *ImportReportService
	url, err := svc.Store(context.Background(), "batch-1", sampleOutcomes())
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "a-b_c", sanitizeFilename("a/b c"))
}
