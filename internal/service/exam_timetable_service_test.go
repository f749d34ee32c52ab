package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/models"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
)

func TestExamTimetableServiceGenerate(t *testing.T) {
	catalog := &subjectCatalogStub{subjects: []models.Subject{
		catalogSubject("CS301", "CSE", models.SubjectTypeHeavy),
		catalogSubject("CS302", "CSE", models.SubjectTypeNonMajor),
	}}
	svc := NewExamTimetableService(catalog, &examStoreStub{}, nil, NewMetricsService(), nil, nil, ExamTimetableConfig{})

	resp, err := svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		Year:        3,
		ExamType:    "Internal",
		StartDate:   "2025-01-06",
		EndDate:     "2025-01-10",
		Departments: []string{"CSE"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ProposalID)
	assert.True(t, resp.Success)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, mkDate(2025, time.January, 7), resp.Entries[1].Date)
	assert.Equal(t, models.SubjectCatalogFilter{Year: 3, Departments: []string{"CSE"}}, catalog.lastFilter)

	stored, err := svc.Proposal(resp.ProposalID)
	require.NoError(t, err)
	assert.Equal(t, resp.Entries, stored.Entries)
}

func TestExamTimetableServiceGenerateNormalizesDepartments(t *testing.T) {
	catalog := &subjectCatalogStub{subjects: []models.Subject{
		catalogSubject("CS301", "CSE", models.SubjectTypeHeavy),
		catalogSubject("CS302", "CSE", models.SubjectTypeNonMajor),
	}}
	svc := NewExamTimetableService(catalog, &examStoreStub{}, nil, nil, nil, nil, ExamTimetableConfig{})
	req := dto.GenerateExamScheduleRequest{
		Year:        3,
		ExamType:    "Internal",
		StartDate:   "2025-01-06",
		EndDate:     "2025-01-10",
		Departments: []string{" CSE ", "CSE\t"},
	}

	resp, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.SubjectCatalogFilter{Year: 3, Departments: []string{"CSE"}}, catalog.lastFilter)
	assert.Len(t, resp.Entries, 2)

	req.Departments = []string{"   "}
	_, err = svc.Generate(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExamTimetableServiceGenerateEmptyCatalog(t *testing.T) {
	svc := NewExamTimetableService(&subjectCatalogStub{}, &examStoreStub{}, nil, nil, nil, nil, ExamTimetableConfig{})

	_, err := svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		Year: 3, ExamType: "Semester", StartDate: "2025-01-06", EndDate: "2025-01-10",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrEmptyCatalog)
	assert.Equal(t, 422, appErrors.FromError(err).Status)
}

func TestExamTimetableServiceGenerateValidation(t *testing.T) {
	svc := NewExamTimetableService(&subjectCatalogStub{}, &examStoreStub{}, nil, nil, nil, nil, ExamTimetableConfig{})
	cases := map[string]dto.GenerateExamScheduleRequest{
		"missing start":  {Year: 3, ExamType: "Internal", EndDate: "2025-01-10"},
		"bad exam type":  {Year: 3, ExamType: "Midterm", StartDate: "2025-01-06", EndDate: "2025-01-10"},
		"reversed":       {Year: 3, ExamType: "Internal", StartDate: "2025-01-10", EndDate: "2025-01-06"},
		"bad holiday":    {Year: 3, ExamType: "Internal", StartDate: "2025-01-06", EndDate: "2025-01-10", Holidays: []string{"Jan 7"}},
		"year too large": {Year: 12, ExamType: "Internal", StartDate: "2025-01-06", EndDate: "2025-01-10"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Generate(context.Background(), req)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestExamTimetableServiceGenerateCatalogFailure(t *testing.T) {
	svc := NewExamTimetableService(&subjectCatalogStub{err: errors.New("timeout")}, &examStoreStub{}, nil, nil, nil, nil, ExamTimetableConfig{})
	_, err := svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		Year: 3, ExamType: "Internal", StartDate: "2025-01-06", EndDate: "2025-01-10",
	})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestExamTimetableServiceSave(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	store := &examStoreStub{}
	svc := NewExamTimetableService(&subjectCatalogStub{subjects: []models.Subject{
		catalogSubject("CS301", "CSE", models.SubjectTypeHeavy),
		catalogSubject("CS302", "CSE", models.SubjectTypeNonMajor),
	}}, store, tx, nil, nil, nil, ExamTimetableConfig{})

	resp, err := svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		Year: 3, ExamType: "Internal", StartDate: "2025-01-06", EndDate: "2025-01-10",
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	saved, err := svc.Save(context.Background(), dto.SaveExamScheduleRequest{ProposalID: resp.ProposalID})
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Count)
	assert.Equal(t, []string{"exam-1", "exam-2"}, saved.ExamIDs)
	require.Len(t, store.created, 2)
	assert.Equal(t, models.ExamTypeInternal, store.created[0].ExamType)
	assert.Equal(t, 3, store.created[0].Year)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = svc.Save(context.Background(), dto.SaveExamScheduleRequest{ProposalID: resp.ProposalID})
	assert.ErrorIs(t, err, appErrors.ErrNotFound, "a proposal can only be saved once")
}

func TestExamTimetableServiceSaveRejectsFailedProposal(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	svc := NewExamTimetableService(&subjectCatalogStub{subjects: []models.Subject{
		catalogSubject("A1", "CSE", models.SubjectTypeHeavy),
		catalogSubject("A2", "CSE", models.SubjectTypeHeavy),
	}}, &examStoreStub{}, tx, nil, nil, nil, ExamTimetableConfig{})

	resp, err := svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		Year: 3, ExamType: "Internal", StartDate: "2025-01-06", EndDate: "2025-01-06",
	})
	require.NoError(t, err)
	require.False(t, resp.Success)

	_, err = svc.Save(context.Background(), dto.SaveExamScheduleRequest{ProposalID: resp.ProposalID})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	mock.ExpectBegin()
	mock.ExpectCommit()
	saved, err := svc.Save(context.Background(), dto.SaveExamScheduleRequest{ProposalID: resp.ProposalID, AllowPartial: true})
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamTimetableServiceSaveRollsBack(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	svc := NewExamTimetableService(&subjectCatalogStub{subjects: []models.Subject{
		catalogSubject("CS301", "CSE", models.SubjectTypeHeavy),
	}}, &examStoreStub{err: errors.New("unique violation")}, tx, nil, nil, nil, ExamTimetableConfig{})

	resp, err := svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		Year: 3, ExamType: "Semester", StartDate: "2025-01-06", EndDate: "2025-01-10",
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err = svc.Save(context.Background(), dto.SaveExamScheduleRequest{ProposalID: resp.ProposalID})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = svc.Proposal(resp.ProposalID)
	assert.NoError(t, err, "failed saves keep the proposal for a retry")
}

func TestExamTimetableServiceCalendar(t *testing.T) {
	svc := NewExamTimetableService(&subjectCatalogStub{}, &examStoreStub{}, nil, nil, nil, nil, ExamTimetableConfig{})

	resp, err := svc.Calendar(dto.CalendarQuery{StartDate: "2025-01-06", EndDate: "2025-01-12", Holidays: []string{"2025-01-08"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-06", "2025-01-07", "2025-01-09", "2025-01-10"}, resp.Dates)
	assert.Equal(t, 4, resp.Count)

	_, err = svc.Calendar(dto.CalendarQuery{StartDate: "2025-01-06"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExamTimetableServiceList(t *testing.T) {
	store := &examStoreStub{listed: []models.Exam{{ID: "exam-1", Department: "CSE"}}}
	svc := NewExamTimetableService(&subjectCatalogStub{}, store, nil, nil, nil, nil, ExamTimetableConfig{})

	exams, err := svc.List(context.Background(), dto.ExamQuery{Year: 3, ExamType: "Semester", Department: "CSE"})
	require.NoError(t, err)
	assert.Len(t, exams, 1)
	assert.Equal(t, models.ExamFilter{Year: 3, ExamType: models.ExamTypeSemester, Department: "CSE"}, store.lastFilter)

	_, err = svc.List(context.Background(), dto.ExamQuery{ExamType: "Quiz"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestProposalStoreExpiry(t *testing.T) {
	store := newProposalStore(time.Minute)
	store.Save(examProposal{ProposalID: "old", RequestedAt: time.Now().Add(-2 * time.Minute)})
	store.Save(examProposal{ProposalID: "fresh", RequestedAt: time.Now()})

	_, ok := store.Get("old")
	assert.False(t, ok)
	_, ok = store.Take("fresh")
	assert.True(t, ok)
	_, ok = store.Get("fresh")
	assert.False(t, ok)
}

// --- Fixtures ---

type subjectCatalogStub struct {
	subjects   []models.Subject
	err        error
	lastFilter models.SubjectCatalogFilter
}

func (s *subjectCatalogStub) ListForScheduling(ctx context.Context, filter models.SubjectCatalogFilter) ([]models.Subject, error) {
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Subject, len(s.subjects))
	copy(out, s.subjects)
	return out, nil
}

type examStoreStub struct {
	created    []models.Exam
	listed     []models.Exam
	lastFilter models.ExamFilter
	err        error
}

func (s *examStoreStub) CreateBatch(ctx context.Context, exec sqlx.ExtContext, exams []models.Exam) error {
	if s.err != nil {
		return s.err
	}
	for i := range exams {
		exams[i].ID = "exam-" + string(rune('0'+len(s.created)+1))
		s.created = append(s.created, exams[i])
	}
	return nil
}

func (s *examStoreStub) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error) {
	s.lastFilter = filter
	return s.listed, nil
}

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}
