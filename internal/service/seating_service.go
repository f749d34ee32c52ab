package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/models"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
)

type seatingExamStore interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	MarkSeatingPublished(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type rosterReader interface {
	ListRoster(ctx context.Context, filter models.RosterFilter) ([]models.Student, error)
}

type roomLookup interface {
	FindByNumber(ctx context.Context, roomNumber string) (*models.Room, error)
}

type roomAvailabilityChecker interface {
	IsRoomAvailable(ctx context.Context, roomNumber string, examDate time.Time, session models.Session, excludeExamID string) (bool, error)
	GetAvailableRooms(ctx context.Context, examDate time.Time, session models.Session, excludeExamID string) ([]models.Room, error)
}

type seatingStore interface {
	ReplaceForExam(ctx context.Context, exec sqlx.ExtContext, examID string, rows []models.SeatAssignment) error
	ListByExam(ctx context.Context, examID string) ([]models.SeatAssignment, error)
}

type seatingPlanScheduler interface {
	SchedulePlan(examID string) error
}

// SeatingServiceConfig tunes allocation defaults.
type SeatingServiceConfig struct {
	Seed     int64
	CacheTTL time.Duration
}

// SeatingService allocates and publishes exam seating.
type SeatingService struct {
	exams        seatingExamStore
	students     rosterReader
	rooms        roomLookup
	availability roomAvailabilityChecker
	seatings     seatingStore
	tx           txProvider
	cache        *CacheService
	plans        seatingPlanScheduler
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	seed         int64
	cacheTTL     time.Duration
	locks        *examLocks
}

// NewSeatingService wires seating dependencies. cache and plans are optional.
func NewSeatingService(
	exams seatingExamStore,
	students rosterReader,
	rooms roomLookup,
	availability roomAvailabilityChecker,
	seatings seatingStore,
	tx txProvider,
	cache *CacheService,
	plans seatingPlanScheduler,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SeatingServiceConfig,
) *SeatingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeatingSeed
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &SeatingService{
		exams:        exams,
		students:     students,
		rooms:        rooms,
		availability: availability,
		seatings:     seatings,
		tx:           tx,
		cache:        cache,
		plans:        plans,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		seed:         cfg.Seed,
		cacheTTL:     cfg.CacheTTL,
		locks:        newExamLocks(),
	}
}

// AllocateSeating seats the exam's roster across rooms and, unless dry-run, publishes the result.
func (s *SeatingService) AllocateSeating(ctx context.Context, req dto.AllocateSeatingRequest) (resp *dto.AllocateSeatingResponse, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seating payload")
	}
	if !req.DryRun {
		unlock := s.locks.lock(req.ExamID)
		defer unlock()
	}

	exam, err := s.loadExam(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}

	filter := models.RosterFilter{Department: exam.Department, Year: exam.Year}
	if strings.TrimSpace(req.Department) != "" {
		filter.Department = strings.TrimSpace(req.Department)
	}
	if req.Year > 0 {
		filter.Year = req.Year
	}
	started := time.Now()
	roster, err := s.students.ListRoster(ctx, filter)
	s.metrics.ObserveDBQuery("roster", time.Since(started))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load student roster")
	}
	if len(roster) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyRoster, fmt.Sprintf("no students found for department %q year %d", filter.Department, filter.Year))
	}

	rooms, err := s.resolveRooms(ctx, exam, req.RoomNumbers)
	if err != nil {
		return nil, err
	}

	seed := s.seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	result := allocateSeats(exam.ExamType, roster, rooms, newSeatRandom(seed))
	for i := range result.Assignments {
		result.Assignments[i].ExamID = exam.ID
	}

	resp = &dto.AllocateSeatingResponse{
		ExamID:      exam.ID,
		Seed:        seed,
		Assignments: result.Assignments,
		Summary:     result.Summary,
	}
	if req.DryRun {
		s.metrics.RecordSeatingRun(exam.ExamType, result.Summary, false)
		return resp, nil
	}

	if err = s.commit(ctx, exam.ID, result.Assignments); err != nil {
		return nil, err
	}
	resp.Committed = true
	s.metrics.RecordSeatingRun(exam.ExamType, result.Summary, true)

	if cacheErr := s.cache.Delete(ctx, seatingCacheKey(exam.ID, seatingRevision(exam))); cacheErr != nil {
		s.logger.Warn("failed to invalidate seating cache", zap.String("exam_id", exam.ID), zap.Error(cacheErr))
	}
	if s.plans != nil {
		if planErr := s.plans.SchedulePlan(exam.ID); planErr != nil {
			s.logger.Warn("failed to schedule seating plan render", zap.String("exam_id", exam.ID), zap.Error(planErr))
		}
	}

	fields := []zap.Field{
		zap.String("exam_id", exam.ID),
		zap.Int64("seed", seed),
		zap.Int("allocated", result.Summary.TotalAllocated),
		zap.Int("rooms", result.Summary.RoomsUsed),
	}
	if result.Summary.Unallocated > 0 {
		s.logger.Warn("seating capacity short of roster", append(fields, zap.Int("unallocated", result.Summary.Unallocated))...)
	} else {
		s.logger.Info("seating published", fields...)
	}
	return resp, nil
}

// GetSeating returns the exam's published seating. The boolean reports a cache hit.
// Cached rows are keyed by the exam revision, so a commit makes older entries unreachable.
func (s *SeatingService) GetSeating(ctx context.Context, examID string) (*dto.ExamSeating, bool, error) {
	if strings.TrimSpace(examID) == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "exam id is required")
	}
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, false, err
	}
	key := seatingCacheKey(exam.ID, seatingRevision(exam))

	var rows []models.SeatAssignment
	hit := false
	if exam.SeatingPublished {
		if cached, cacheErr := s.cache.Get(ctx, key, &rows); cacheErr == nil && cached {
			hit = true
		}
	}
	if !hit {
		if rows, err = s.seatings.ListByExam(ctx, examID); err != nil {
			return nil, false, appErrors.Internal(err, "failed to load seating")
		}
		sortAssignments(rows)
		if exam.SeatingPublished {
			_ = s.cache.Set(ctx, key, rows, s.cacheTTL)
		}
	}
	return &dto.ExamSeating{Exam: *exam, Assignments: rows, Total: len(rows)}, hit, nil
}

func (s *SeatingService) loadExam(ctx context.Context, examID string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Internal(err, "failed to load exam")
	}
	return exam, nil
}

func (s *SeatingService) resolveRooms(ctx context.Context, exam *models.Exam, requested []string) ([]models.Room, error) {
	if len(requested) == 0 {
		rooms, err := s.availability.GetAvailableRooms(ctx, exam.ExamDate, exam.Session, exam.ID)
		if err != nil {
			return nil, err
		}
		if len(rooms) == 0 {
			return nil, appErrors.Clone(appErrors.ErrNoRooms, fmt.Sprintf("no rooms available on %s %s", exam.ExamDate.Format(dto.DateLayout), exam.Session))
		}
		return rooms, nil
	}

	rooms := make([]models.Room, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, raw := range requested {
		number := strings.TrimSpace(raw)
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}

		room, err := s.rooms.FindByNumber(ctx, number)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("room %s not found", number))
			}
			return nil, appErrors.Internal(err, "failed to load room")
		}
		if !room.IsAvailable {
			return nil, appErrors.Clone(appErrors.ErrRoomConflict, fmt.Sprintf("room %s is closed for exams", number))
		}
		free, err := s.availability.IsRoomAvailable(ctx, number, exam.ExamDate, exam.Session, exam.ID)
		if err != nil {
			return nil, err
		}
		if !free {
			return nil, appErrors.Clone(appErrors.ErrRoomConflict,
				fmt.Sprintf("room %s is already booked on %s %s", number, exam.ExamDate.Format(dto.DateLayout), exam.Session))
		}
		rooms = append(rooms, *room)
	}
	return rooms, nil
}

func (s *SeatingService) commit(ctx context.Context, examID string, rows []models.SeatAssignment) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.seatings.ReplaceForExam(ctx, tx, examID, rows); err != nil {
		err = appErrors.Internal(err, "failed to store seating")
		return err
	}
	if err = s.exams.MarkSeatingPublished(ctx, tx, examID); err != nil {
		err = appErrors.Internal(err, "failed to publish seating")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit seating")
		return err
	}
	return nil
}

func seatingCacheKey(examID string, revision int64) string {
	return fmt.Sprintf("seating:exam:%s:%d", examID, revision)
}

// seatingRevision identifies the committed seating of an exam. Every commit bumps updated_at.
func seatingRevision(exam *models.Exam) int64 {
	if exam == nil || exam.UpdatedAt.IsZero() {
		return 0
	}
	return exam.UpdatedAt.UTC().UnixNano()
}

// sortAssignments orders seats by room, bench and seat position.
func sortAssignments(rows []models.SeatAssignment) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.RoomNumber != b.RoomNumber {
			return roomNumberLess(a.RoomNumber, b.RoomNumber)
		}
		if a.BenchNumber != nil && b.BenchNumber != nil && *a.BenchNumber != *b.BenchNumber {
			return *a.BenchNumber < *b.BenchNumber
		}
		return roomNumberLess(a.SeatNumber, b.SeatNumber)
	})
}

// examLocks serializes commits per exam within the process.
type examLocks struct {
	mu    sync.Mutex
	locks map[string]*examLock
}

type examLock struct {
	mu   sync.Mutex
	refs int
}

func newExamLocks() *examLocks {
	return &examLocks{locks: make(map[string]*examLock)}
}

func (l *examLocks) lock(examID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[examID]
	if !ok {
		entry = &examLock{}
		l.locks[examID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, examID)
		}
		l.mu.Unlock()
	}
}
