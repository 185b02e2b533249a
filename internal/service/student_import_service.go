package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/tahfidz-admin-api/internal/dto"
	"github.com/noah-isme/tahfidz-admin-api/internal/models"
	"github.com/noah-isme/tahfidz-admin-api/internal/repository"
	appErrors "github.com/noah-isme/tahfidz-admin-api/pkg/errors"
	"github.com/noah-isme/tahfidz-admin-api/pkg/middleware/requestid"
)

// RowStatus is the terminal state of one import row.
type RowStatus string

const (
	RowSucceeded RowStatus = "SUCCEEDED"
	RowFailed    RowStatus = "FAILED"
	RowDuplicate RowStatus = "DUPLICATE"
	// RowValidated is used when accounts are not auto-created and the row passed every check.
	RowValidated RowStatus = "VALIDATED"
	// RowSkipped marks rows never processed because the batch was cancelled.
	RowSkipped RowStatus = "SKIPPED"
)

const invalidationTimeout = 5 * time.Second

// RowOutcome is the result of processing one row.
type RowOutcome struct {
	Index       int
	Line        int
	Status      RowStatus
	StudentName string
	NIS         string
	Refs        ResolvedRefs
	Result      *ProvisionResult
	Err         *RowError
}

// ImportRequest is one batch of rows.
type ImportRequest struct {
	Rows              []dto.ImportRow
	AutoCreateAccount bool
}

// ImportResult is the legacy response body plus per-row detail.
type ImportResult struct {
	dto.StudentImportResponse
	BatchID  string
	Outcomes []RowOutcome
}

// StudentImportConfig tunes batch execution.
type StudentImportConfig struct {
	MaxErrors int
	RowDelay  time.Duration
	Workers   int
	MaxRows   int
}

type rowProvisioner interface {
	Provision(ctx context.Context, row NormalizedRow, refs ResolvedRefs) (*ProvisionResult, error)
	CheckDuplicates(ctx context.Context, row NormalizedRow) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// ReportArchiver persists the per-row outcomes of a batch and returns a download URL.
type ReportArchiver interface {
	Store(ctx context.Context, batchID string, outcomes []RowOutcome) (string, error)
}

// StudentImportService runs the smart import pipeline: validate, resolve references, check duplicates,
// provision accounts. Per-row failures are recorded and never abort the batch.
type StudentImportService struct {
	validator   *RowValidator
	resolver    *ReferenceResolver
	provisioner rowProvisioner
	deriver     *IdentityDeriver
	cache       cacheInvalidator
	reports     ReportArchiver
	metrics     *MetricsService
	locks       *KeyedLocker
	cfg         StudentImportConfig
	logger      *zap.Logger

	pause      func(ctx context.Context, d time.Duration) error
	newBatchID func() string
}

// NewStudentImportService wires the pipeline. cache, reports and metrics are optional.
func NewStudentImportService(
	validator *RowValidator,
	resolver *ReferenceResolver,
	provisioner rowProvisioner,
	deriver *IdentityDeriver,
	cache cacheInvalidator,
	reports ReportArchiver,
	metrics *MetricsService,
	cfg StudentImportConfig,
	logger *zap.Logger,
) *StudentImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &StudentImportService{
		validator:   validator,
		resolver:    resolver,
		provisioner: provisioner,
		deriver:     deriver,
		cache:       cache,
		reports:     reports,
		metrics:     metrics,
		locks:       NewKeyedLocker(),
		cfg:         cfg,
		logger:      logger,
		pause:       sleepContext,
		newBatchID:  uuid.NewString,
	}
}

// Import processes every row and returns aggregated statistics. Only batch-level problems
// (empty or oversized input) are returned as errors. A cancelled ctx stops the batch between rows
// and the partial result is still returned.
func (s *StudentImportService) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if len(req.Rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "import data must be a non-empty array")
	}
	if s.cfg.MaxRows > 0 && len(req.Rows) > s.cfg.MaxRows {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("import is limited to %d rows per batch", s.cfg.MaxRows))
	}

	batchID := s.newBatchID()
	start := time.Now()
	outcomes := s.run(ctx, req)
	result := s.aggregate(batchID, outcomes)

	if req.AutoCreateAccount && result.Stats.Success > 0 && s.cache != nil {
		invalidateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidationTimeout)
		if err := s.cache.Invalidate(invalidateCtx, StudentListCachePrefix+"*"); err != nil {
			s.logger.Warn("student list cache invalidation failed", zap.String("batch_id", batchID), zap.Error(err))
		}
		cancel()
	}

	if s.reports != nil {
		url, err := s.reports.Store(context.WithoutCancel(ctx), batchID, outcomes)
		if err != nil {
			s.logger.Warn("import report not stored", zap.String("batch_id", batchID), zap.Error(err))
		} else {
			result.ReportURL = url
		}
	}

	elapsed := time.Since(start)
	s.metrics.RecordImportBatch(map[RowStatus]int{
		RowSucceeded: result.Stats.Success,
		RowFailed:    result.Stats.Failed,
		RowDuplicate: result.Stats.Duplicate,
		RowValidated: result.Stats.Validated,
		RowSkipped:   result.Stats.Skipped,
	}, s.cfg.Workers, elapsed)

	s.logger.Info("student import finished",
		zap.String("batch_id", batchID),
		zap.String("request_id", requestid.FromContext(ctx)),
		zap.Int("total", result.Stats.Total),
		zap.Int("success", result.Stats.Success),
		zap.Int("failed", result.Stats.Failed),
		zap.Int("duplicate", result.Stats.Duplicate),
		zap.Int("validated", result.Stats.Validated),
		zap.Int("skipped", result.Stats.Skipped),
		zap.Int("workers", s.cfg.Workers),
		zap.Bool("auto_create", req.AutoCreateAccount),
		zap.Duration("duration", elapsed),
	)
	return result, nil
}

func (s *StudentImportService) run(ctx context.Context, req ImportRequest) []RowOutcome {
	resolver := newBatchResolver(s.resolver)
	claims := newBatchClaims()
	outcomes := make([]RowOutcome, len(req.Rows))
	results := make(chan RowOutcome)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for outcome := range results {
			outcomes[outcome.Index] = outcome
		}
	}()

	if s.cfg.Workers <= 1 {
		for i, row := range req.Rows {
			if i > 0 {
				// an interrupted pause leaves ctx done, so the row below reports itself skipped
				_ = s.pause(ctx, s.cfg.RowDelay)
			}
			results <- s.processRow(ctx, i, row, req.AutoCreateAccount, resolver, claims)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.cfg.Workers)
		for i, row := range req.Rows {
			i, row := i, row
			g.Go(func() error {
				results <- s.processRow(ctx, i, row, req.AutoCreateAccount, resolver, claims)
				// each worker keeps the reference pacing, so the write rate scales with Workers only
				_ = s.pause(ctx, s.cfg.RowDelay)
				return nil
			})
		}
		_ = g.Wait()
	}

	close(results)
	<-collected
	return outcomes
}

func (s *StudentImportService) processRow(ctx context.Context, index int, row dto.ImportRow, autoCreate bool, resolver *batchResolver, claims *batchClaims) (outcome RowOutcome) {
	if row.Line <= 0 {
		row.Line = index + 1
	}
	outcome = RowOutcome{
		Index:       index,
		Line:        row.Line,
		StudentName: row.Student.Name.String(),
		NIS:         row.Student.NIS.String(),
	}
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("panic while importing row", zap.Int("row", row.Line), zap.Any("panic", p))
			outcome.Status = RowFailed
			outcome.Result = nil
			outcome.Err = &RowError{Kind: RowErrProvisioning, Line: row.Line, Message: fmt.Sprintf("unexpected error: %v", p)}
		}
	}()

	if ctx.Err() != nil {
		outcome.Status = RowSkipped
		return outcome
	}

	normalized, rowErr := s.validator.Validate(row)
	if rowErr != nil {
		return s.classify(ctx, outcome, rowErr)
	}

	refs, err := resolver.resolve(ctx, normalized.Student.ClassName, normalized.Student.AdmissionYearName)
	if err != nil {
		return s.classify(ctx, outcome, err)
	}
	outcome.Refs = refs

	unlock := s.locks.Lock(s.lockKeys(normalized)...)
	defer unlock()

	if !autoCreate {
		if err := s.provisioner.CheckDuplicates(ctx, normalized); err != nil {
			return s.classify(ctx, outcome, err)
		}
		// nothing is written in a dry run, so earlier rows of the batch are checked here instead
		if dup := claims.claim(s.studentKeys(normalized)); dup != nil {
			return s.classify(ctx, outcome, dup)
		}
		outcome.Status = RowValidated
		return outcome
	}

	result, err := s.provisioner.Provision(ctx, normalized, refs)
	if err != nil {
		return s.classify(ctx, outcome, err)
	}
	outcome.Status = RowSucceeded
	outcome.Result = result
	return outcome
}

func (s *StudentImportService) lockKeys(row NormalizedRow) []string {
	keys := s.studentKeys(row)
	return []string{
		keys[0].lockKey(),
		keys[1].lockKey(),
		keys[2].lockKey(),
		"email:" + s.deriver.GuardianEmail(row.Guardian.Name, row.Student.NIS),
	}
}

// studentKeys are the values only one student may hold: NISN, NIS and the derived student email.
func (s *StudentImportService) studentKeys(row NormalizedRow) []claimKey {
	return []claimKey{
		{kind: "nisn", field: "NISN", value: row.Student.NISN},
		{kind: "nis", field: "NIS", value: row.Student.NIS},
		{kind: "email", field: "email", value: s.deriver.StudentEmail(row.Student.Name, row.Student.NIS)},
	}
}

type claimKey struct {
	kind  string
	field string
	value string
}

func (k claimKey) lockKey() string {
	return k.kind + ":" + k.value
}

// batchClaims remembers the student keys taken by earlier rows of one batch.
type batchClaims struct {
	mu    sync.Mutex
	taken map[string]struct{}
}

func newBatchClaims() *batchClaims {
	return &batchClaims{taken: make(map[string]struct{})}
}

// claim takes every key or none. The first key already taken is reported as a duplicate.
func (b *batchClaims) claim(keys []claimKey) *DuplicateError {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		if _, ok := b.taken[strings.ToLower(k.lockKey())]; ok {
			return &DuplicateError{Field: k.field, Value: k.value}
		}
	}
	for _, k := range keys {
		b.taken[strings.ToLower(k.lockKey())] = struct{}{}
	}
	return nil
}

// classify maps any error from a row step onto FAILED, DUPLICATE or SKIPPED.
func (s *StudentImportService) classify(ctx context.Context, outcome RowOutcome, err error) RowOutcome {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		outcome.Status = RowSkipped
		return outcome
	}

	line := outcome.Line
	var (
		rowErr *RowError
		dupErr *DuplicateError
		refErr *ReferenceNotFoundError
	)
	switch {
	case errors.As(err, &rowErr):
	case errors.As(err, &dupErr):
		rowErr = &RowError{Kind: RowErrDuplicate, Line: line, Message: dupErr.Error(), Err: err}
	case repository.IsUniqueViolation(err):
		msg := "duplicate - record already exists"
		if constraint := repository.ConstraintName(err); constraint != "" {
			msg = fmt.Sprintf("%s (%s)", msg, constraint)
		}
		rowErr = &RowError{Kind: RowErrDuplicate, Line: line, Message: msg, Err: err}
	case errors.As(err, &refErr):
		rowErr = &RowError{Kind: RowErrReference, Line: line, Message: refErr.Error(), Err: err}
	default:
		rowErr = &RowError{Kind: RowErrProvisioning, Line: line, Message: err.Error(), Err: err}
	}

	outcome.Err = rowErr
	if rowErr.Kind == RowErrDuplicate {
		outcome.Status = RowDuplicate
	} else {
		outcome.Status = RowFailed
	}
	s.logger.Debug("import row rejected",
		zap.Int("row", outcome.Line),
		zap.String("status", string(outcome.Status)),
		zap.String("kind", string(rowErr.Kind)),
		zap.String("reason", rowErr.Message),
	)
	return outcome
}

func (s *StudentImportService) aggregate(batchID string, outcomes []RowOutcome) *ImportResult {
	result := &ImportResult{BatchID: batchID, Outcomes: outcomes}
	resp := &result.StudentImportResponse
	resp.NewAccounts = []dto.NewAccount{}
	resp.Errors = []string{}
	resp.Stats.Total = len(outcomes)

	for _, outcome := range outcomes {
		switch outcome.Status {
		case RowSucceeded:
			resp.Stats.Success++
			s.collectAccounts(resp, outcome)
		case RowFailed:
			resp.Stats.Failed++
			s.appendError(resp, outcome.Err)
		case RowDuplicate:
			resp.Stats.Duplicate++
			s.appendError(resp, outcome.Err)
		case RowValidated:
			resp.Stats.Validated++
		case RowSkipped:
			resp.Stats.Skipped++
		}
	}

	switch {
	case resp.Stats.Skipped > 0:
		resp.Cancelled = true
		resp.Message = fmt.Sprintf("Import cancelled; %d rows were not processed", resp.Stats.Skipped)
	default:
		resp.Message = "Import completed"
	}
	return result
}

func (s *StudentImportService) appendError(resp *dto.StudentImportResponse, rowErr *RowError) {
	if rowErr == nil {
		return
	}
	if len(resp.Errors) >= s.cfg.MaxErrors {
		resp.ErrorsTruncated = true
		return
	}
	resp.Errors = append(resp.Errors, rowErr.Error())
}

func (s *StudentImportService) collectAccounts(resp *dto.StudentImportResponse, outcome RowOutcome) {
	res := outcome.Result
	if res == nil {
		return
	}
	resp.Stats.CreatedStudents++
	if res.LinkCreated {
		resp.Stats.CreatedLinks++
	}
	resp.NewAccounts = append(resp.NewAccounts, dto.NewAccount{
		Name:     res.Student.Account.FullName,
		Role:     string(models.RoleStudent),
		Email:    res.Student.Account.Email,
		Password: res.Student.Password,
		Note:     fmt.Sprintf("Kelas: %s, TA: %s", refName(outcome.Refs.Class), yearName(outcome.Refs.AcademicYear)),
	})
	if !res.Guardian.Created {
		resp.Stats.ReusedGuardians++
		return
	}
	resp.Stats.CreatedGuardians++
	resp.NewAccounts = append(resp.NewAccounts, dto.NewAccount{
		Name:     res.Guardian.Account.FullName,
		Role:     string(models.RoleGuardian),
		Email:    res.Guardian.Account.Email,
		Password: res.Guardian.Password,
		Note:     "Orang tua dari " + res.Student.Account.FullName,
	})
}

func refName(class *models.Class) string {
	if class == nil || class.Name == "" {
		return "-"
	}
	return class.Name
}

func yearName(year *models.AcademicYear) string {
	if year == nil || year.Name == "" {
		return "-"
	}
	return year.Name
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
