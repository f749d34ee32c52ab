package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/models"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
)

type subjectCatalog interface {
	ListForScheduling(ctx context.Context, filter models.SubjectCatalogFilter) ([]models.Subject, error)
}

type examStore interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, exams []models.Exam) error
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// ExamTimetableConfig governs proposal retention.
type ExamTimetableConfig struct {
	ProposalTTL time.Duration
}

// ExamTimetableService builds timetable proposals and persists accepted ones as exams.
type ExamTimetableService struct {
	subjects  subjectCatalog
	exams     examStore
	tx        txProvider
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	store     *proposalStore
}

// NewExamTimetableService wires timetable dependencies.
func NewExamTimetableService(
	subjects subjectCatalog,
	exams examStore,
	tx txProvider,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ExamTimetableConfig,
) *ExamTimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	return &ExamTimetableService{
		subjects:  subjects,
		exams:     exams,
		tx:        tx,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		store:     newProposalStore(cfg.ProposalTTL),
	}
}

// Calendar previews the usable exam dates for a window.
func (s *ExamTimetableService) Calendar(query dto.CalendarQuery) (*dto.CalendarResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar query")
	}
	start, end, holidays, err := parseWindowDates(query.StartDate, query.EndDate, query.Holidays)
	if err != nil {
		return nil, err
	}
	dates := GenerateAvailableDates(start, end, holidays)
	resp := &dto.CalendarResponse{Dates: make([]string, 0, len(dates)), Count: len(dates)}
	for _, d := range dates {
		resp.Dates = append(resp.Dates, d.Format(dto.DateLayout))
	}
	return resp, nil
}

// Generate loads the catalog, runs the scheduler and stores the result as a proposal.
func (s *ExamTimetableService) Generate(ctx context.Context, req dto.GenerateExamScheduleRequest) (*dto.GenerateExamScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam schedule payload")
	}
	departments := normalizeDepartments(req.Departments)
	if len(req.Departments) > 0 && len(departments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "departments must not be blank")
	}
	start, end, holidays, err := parseWindowDates(req.StartDate, req.EndDate, req.Holidays)
	if err != nil {
		return nil, err
	}
	window := models.ExamWindow{
		Year:        req.Year,
		ExamType:    models.ExamType(req.ExamType),
		StartDate:   start,
		EndDate:     end,
		Holidays:    holidays,
		Departments: departments,
	}

	started := time.Now()
	subjects, err := s.subjects.ListForScheduling(ctx, models.SubjectCatalogFilter{Year: req.Year, Departments: departments})
	s.metrics.ObserveDBQuery("subjects_for_scheduling", time.Since(started))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load subject catalog")
	}
	if len(subjects) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyCatalog, fmt.Sprintf("no subjects found for year %d and the requested departments", req.Year))
	}
	for _, subject := range subjects {
		if !subject.SubjectType.Valid() {
			s.logger.Warn("subject has unknown type, scheduling as NONMAJOR",
				zap.String("subject", subject.Code), zap.String("type", string(subject.SubjectType)))
		}
	}

	result, err := ScheduleExams(window, subjects)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordScheduleRun(window.ExamType, result)

	proposal := examProposal{
		ProposalID:  uuid.NewString(),
		Window:      window,
		Result:      result,
		RequestedAt: time.Now().UTC(),
	}
	s.store.Save(proposal)

	s.logger.Info("exam timetable generated",
		zap.String("proposal_id", proposal.ProposalID),
		zap.String("exam_type", req.ExamType),
		zap.Int("year", req.Year),
		zap.Int("scheduled", result.Summary.Scheduled),
		zap.Int("warnings", result.Summary.Warnings),
		zap.Int("errors", result.Summary.Errors),
	)

	return &dto.GenerateExamScheduleResponse{
		ProposalID: proposal.ProposalID,
		Entries:    result.Entries,
		Violations: result.Violations,
		Success:    result.Success,
		Summary:    result.Summary,
	}, nil
}

// Proposal returns a stored proposal that has not been saved or expired.
func (s *ExamTimetableService) Proposal(proposalID string) (*dto.GenerateExamScheduleResponse, error) {
	proposal, ok := s.store.Get(proposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return &dto.GenerateExamScheduleResponse{
		ProposalID: proposal.ProposalID,
		Entries:    proposal.Result.Entries,
		Violations: proposal.Result.Violations,
		Success:    proposal.Result.Success,
		Summary:    proposal.Result.Summary,
	}, nil
}

// Save persists a stored proposal as exams in one transaction.
func (s *ExamTimetableService) Save(ctx context.Context, req dto.SaveExamScheduleRequest) (resp *dto.SaveExamScheduleResponse, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save exam schedule payload")
	}
	proposal, ok := s.store.Take(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	defer func() {
		if err != nil {
			s.store.Save(proposal)
		}
	}()

	if !proposal.Result.Success && !req.AllowPartial {
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal has unscheduled subjects; pass allowPartial to save it anyway")
	}
	if len(proposal.Result.Entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal has no scheduled exams")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	exams := make([]models.Exam, 0, len(proposal.Result.Entries))
	for _, entry := range proposal.Result.Entries {
		exams = append(exams, models.Exam{
			Year:        proposal.Window.Year,
			ExamType:    proposal.Window.ExamType,
			Department:  entry.Department,
			SubjectCode: entry.SubjectCode,
			SubjectName: entry.SubjectName,
			SubjectType: entry.SubjectType,
			ExamDate:    entry.Date,
			Session:     entry.Session,
		})
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.exams.CreateBatch(ctx, tx, exams); err != nil {
		err = appErrors.Internal(err, "failed to persist exams")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit exam schedule")
		return nil, err
	}

	ids := make([]string, 0, len(exams))
	for _, exam := range exams {
		ids = append(ids, exam.ID)
	}
	s.logger.Info("exam timetable saved", zap.String("proposal_id", proposal.ProposalID), zap.Int("exams", len(ids)))
	return &dto.SaveExamScheduleResponse{ExamIDs: ids, Count: len(ids)}, nil
}

// List returns persisted exams.
func (s *ExamTimetableService) List(ctx context.Context, query dto.ExamQuery) ([]models.Exam, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam query")
	}
	exams, err := s.exams.List(ctx, models.ExamFilter{
		Year:       query.Year,
		ExamType:   models.ExamType(query.ExamType),
		Department: query.Department,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list exams")
	}
	return exams, nil
}

// normalizeDepartments trims names and drops blanks and repeats, keeping request order.
func normalizeDepartments(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, d := range raw {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

func parseWindowDates(startRaw, endRaw string, holidayRaw []string) (time.Time, time.Time, []time.Time, error) {
	start, err := time.Parse(dto.DateLayout, startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, nil, appErrors.Clone(appErrors.ErrValidation, "startDate must use YYYY-MM-DD")
	}
	end, err := time.Parse(dto.DateLayout, endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, nil, appErrors.Clone(appErrors.ErrValidation, "endDate must use YYYY-MM-DD")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
	}
	holidays := make([]time.Time, 0, len(holidayRaw))
	for _, raw := range holidayRaw {
		h, err := time.Parse(dto.DateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("holiday %q must use YYYY-MM-DD", raw))
		}
		holidays = append(holidays, h)
	}
	return start, end, holidays, nil
}

type examProposal struct {
	ProposalID  string
	Window      models.ExamWindow
	Result      models.ScheduleResult
	RequestedAt time.Time
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]examProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]examProposal),
	}
}

func (s *proposalStore) Save(proposal examProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ProposalID] = proposal
	s.evictLocked()
}

func (s *proposalStore) Get(id string) (examProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return examProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return examProposal{}, false
	}
	return proposal, true
}

// Take removes and returns a live proposal so only one caller can save it.
func (s *proposalStore) Take(id string) (examProposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.items[id]
	if !ok {
		return examProposal{}, false
	}
	delete(s.items, id)
	if time.Since(proposal.RequestedAt) > s.ttl {
		return examProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *proposalStore) evictLocked() {
	for id, p := range s.items {
		if time.Since(p.RequestedAt) > s.ttl {
			delete(s.items, id)
		}
	}
}
