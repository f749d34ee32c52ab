package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/models"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
	"github.com/noah-isme/sma-exam-api/pkg/export"
	"github.com/noah-isme/sma-exam-api/pkg/jobs"
)

// SeatingPlanJobType tags queue jobs that pre-render seating plans.
const SeatingPlanJobType = "seating_plan"

type planExamReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

type planSeatingReader interface {
	ListByExam(ctx context.Context, examID string) ([]models.SeatAssignment, error)
}

type planStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Exists(filename string) bool
	Delete(filename string) error
	List(dir string) ([]string, error)
}

type planSigner interface {
	Generate(ownerID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (ownerID, relPath string, expiresAt time.Time, err error)
}

type planRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// SeatingPlanConfig tunes plan links.
type SeatingPlanConfig struct {
	APIPrefix string
}

// SeatingPlanDownload is an opened plan file ready to stream.
type SeatingPlanDownload struct {
	File        *os.File
	Filename    string
	ContentType string
}

// SeatingPlanService renders published seating into printable plans.
type SeatingPlanService struct {
	exams     planExamReader
	seatings  planSeatingReader
	storage   planStorage
	signer    planSigner
	renderers map[dto.SeatingPlanFormat]planRenderer
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       SeatingPlanConfig
}

// NewSeatingPlanService constructs a SeatingPlanService with CSV and PDF renderers.
func NewSeatingPlanService(exams planExamReader, seatings planSeatingReader, storage planStorage, signer planSigner, metrics *MetricsService, logger *zap.Logger, cfg SeatingPlanConfig) *SeatingPlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeatingPlanService{
		exams:    exams,
		seatings: seatings,
		storage:  storage,
		signer:   signer,
		renderers: map[dto.SeatingPlanFormat]planRenderer{
			dto.SeatingPlanFormatCSV: export.NewCSVExporter(),
			dto.SeatingPlanFormatPDF: export.NewPDFExporter(),
		},
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// Render builds and stores the plan for the exam's current seating, returning its
// storage path. Plans of older seating revisions are removed afterwards.
func (s *SeatingPlanService) Render(ctx context.Context, examID string, format dto.SeatingPlanFormat) (relPath string, err error) {
	renderer, err := s.renderer(format)
	if err != nil {
		return "", err
	}
	defer func() { s.metrics.RecordPlanRender(string(format), err) }()

	exam, err := s.publishedExam(ctx, examID)
	if err != nil {
		return "", err
	}
	rows, err := s.seatings.ListByExam(ctx, examID)
	if err != nil {
		return "", appErrors.Internal(err, "failed to load seating")
	}
	sortAssignments(rows)

	payload, err := renderer.Render(seatingPlanDataset(exam, rows))
	if err != nil {
		return "", appErrors.Internal(err, "failed to render seating plan")
	}
	revision := seatingRevision(exam)
	relPath, err = s.storage.Save(planFilename(examID, revision, renderer.Extension()), payload)
	if err != nil {
		return "", appErrors.Internal(err, "failed to store seating plan")
	}
	s.pruneOlder(examID, revision, renderer.Extension())
	s.logger.Debug("seating plan rendered", zap.String("exam_id", examID), zap.String("format", string(format)), zap.Int("rows", len(rows)))
	return relPath, nil
}

// Link returns a signed download link, rendering the plan first when it is missing.
func (s *SeatingPlanService) Link(ctx context.Context, examID string, format dto.SeatingPlanFormat) (*dto.SeatingPlanLink, error) {
	relPath, err := s.current(ctx, examID, format)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(examID, relPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign seating plan link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &dto.SeatingPlanLink{
		ExamID:    examID,
		Format:    format,
		URL:       fmt.Sprintf("%s/seating-plans/%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// Open resolves a signed token into a readable plan file. The token fixes the exam
// and format; the file served is always the one for the current seating.
func (s *SeatingPlanService) Open(ctx context.Context, token string) (*SeatingPlanDownload, error) {
	examID, signedPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download link")
	}
	format := dto.SeatingPlanFormat(strings.TrimPrefix(path.Ext(signedPath), "."))
	renderer, ok := s.renderers[format]
	if !ok || path.Dir(signedPath) != examID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	relPath, err := s.current(ctx, examID, format)
	if err != nil {
		return nil, err
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to open seating plan")
	}
	return &SeatingPlanDownload{
		File:        file,
		Filename:    fmt.Sprintf("seating-%s.%s", examID, renderer.Extension()),
		ContentType: renderer.ContentType(),
	}, nil
}

// current returns the stored plan for the exam's current seating, rendering it when absent.
func (s *SeatingPlanService) current(ctx context.Context, examID string, format dto.SeatingPlanFormat) (string, error) {
	renderer, err := s.renderer(format)
	if err != nil {
		return "", err
	}
	exam, err := s.publishedExam(ctx, examID)
	if err != nil {
		return "", err
	}
	relPath := planFilename(examID, seatingRevision(exam), renderer.Extension())
	if s.storage.Exists(relPath) {
		return relPath, nil
	}
	return s.Render(ctx, examID, format)
}

func (s *SeatingPlanService) renderer(format dto.SeatingPlanFormat) (planRenderer, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported plan format %q", format))
	}
	return renderer, nil
}

func (s *SeatingPlanService) publishedExam(ctx context.Context, examID string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Internal(err, "failed to load exam")
	}
	if !exam.SeatingPublished {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "seating has not been published for this exam")
	}
	return exam, nil
}

// pruneOlder removes stored plans of the same format from earlier revisions. A newer
// revision rendered concurrently is left alone.
func (s *SeatingPlanService) pruneOlder(examID string, revision int64, ext string) {
	files, err := s.storage.List(examID)
	if err != nil {
		s.logger.Warn("failed to list seating plans", zap.String("exam_id", examID), zap.Error(err))
		return
	}
	for _, file := range files {
		stored, ok := planRevision(file, ext)
		if !ok || stored >= revision {
			continue
		}
		if err := s.storage.Delete(file); err != nil {
			s.logger.Warn("failed to remove superseded seating plan", zap.String("file", file), zap.Error(err))
		}
	}
}

func planFilename(examID string, revision int64, ext string) string {
	return path.Join(examID, fmt.Sprintf("seating-%d.%s", revision, ext))
}

func planRevision(relPath, ext string) (int64, bool) {
	name := path.Base(relPath)
	if !strings.HasPrefix(name, "seating-") || !strings.HasSuffix(name, "."+ext) {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, "seating-"), "."+ext)
	revision, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return revision, true
}

func seatingPlanDataset(exam *models.Exam, rows []models.SeatAssignment) export.Dataset {
	headers := []string{"Room", "Seat", "Bench", "Register No", "Department", "Floor", "Building"}
	records := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		bench := ""
		if row.BenchNumber != nil {
			bench = strconv.Itoa(*row.BenchNumber)
		}
		records = append(records, map[string]string{
			"Room":        row.RoomNumber,
			"Seat":        row.SeatNumber,
			"Bench":       bench,
			"Register No": row.RegisterNumber,
			"Department":  row.Department,
			"Floor":       row.Floor,
			"Building":    row.Building,
		})
	}
	subject := exam.SubjectCode
	if exam.SubjectName != "" {
		subject += " " + exam.SubjectName
	}
	return export.Dataset{
		Title: "Seating Plan",
		Subtitle: []string{
			strings.TrimSpace(subject),
			fmt.Sprintf("%s exam, %s %s", exam.ExamType, exam.ExamDate.Format(dto.DateLayout), exam.Session),
			fmt.Sprintf("%d students", len(rows)),
		},
		Headers: headers,
		Rows:    records,
		GroupBy: "Room",
	}
}

// SeatingPlanScheduler queues plan renders after seating is published.
type SeatingPlanScheduler struct {
	queue jobDispatcher
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// NewSeatingPlanScheduler wraps a job queue.
func NewSeatingPlanScheduler(queue jobDispatcher) *SeatingPlanScheduler {
	return &SeatingPlanScheduler{queue: queue}
}

// SchedulePlan enqueues a render of every plan format for the exam.
func (s *SeatingPlanScheduler) SchedulePlan(examID string) error {
	if s == nil || s.queue == nil {
		return nil
	}
	return s.queue.Enqueue(jobs.Job{ID: examID, Type: SeatingPlanJobType, Payload: examID})
}

type planRenderService interface {
	Render(ctx context.Context, examID string, format dto.SeatingPlanFormat) (string, error)
}

// SeatingPlanWorker bridges queue jobs to SeatingPlanService.
type SeatingPlanWorker struct {
	plans  planRenderService
	logger *zap.Logger
}

// NewSeatingPlanWorker constructs a worker.
func NewSeatingPlanWorker(plans planRenderService, logger *zap.Logger) *SeatingPlanWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeatingPlanWorker{plans: plans, logger: logger}
}

// Handle renders both plan formats. Unpublished or missing exams are dropped without retry.
func (w *SeatingPlanWorker) Handle(ctx context.Context, job jobs.Job) error {
	for _, format := range []dto.SeatingPlanFormat{dto.SeatingPlanFormatCSV, dto.SeatingPlanFormatPDF} {
		if _, err := w.plans.Render(ctx, job.ID, format); err != nil {
			if errors.Is(err, appErrors.ErrNotFound) || errors.Is(err, appErrors.ErrPreconditionFailed) {
				w.logger.Sugar().Warnw("skipping seating plan", "exam_id", job.ID, "format", format, "error", err)
				return nil
			}
			return err
		}
	}
	return nil
}
