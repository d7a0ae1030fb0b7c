package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// Источники кадров для журнала и живой ленты.
const (
	OriginUpload   = "upload"
	OriginCapture  = "capture"
	OriginTelegram = "telegram"
)

var ErrInspectorNotConfigured = errors.New("inspector is not configured")

type InspectionService struct {
	users     *UserService
	inspector port.FrameInspector
	describer port.ReportDescriber
	journal   port.InspectionLog
	publisher port.BatchPublisher
	log       *zap.SugaredLogger
}

// InspectionOutput содержит отчёт по кадру и партию, под которой он сохранён.
type InspectionOutput struct {
	Report    *entity.InspectionReport
	Batch     *entity.InspectionBatch
	Persisted bool // false, если журнал недоступен и партия собрана на месте
}

// InspectionDeps зависимости сервиса; journal и publisher необязательны.
type InspectionDeps struct {
	Users     *UserService
	Inspector port.FrameInspector
	Describer port.ReportDescriber
	Journal   port.InspectionLog
	Publisher port.BatchPublisher
	Logger    *zap.SugaredLogger
}

// NewInspectionService создаёт сервис, который управляет проверкой блистеров.
func NewInspectionService(d InspectionDeps) *InspectionService {
	log := d.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &InspectionService{
		users:     d.Users,
		inspector: d.Inspector,
		describer: d.Describer,
		journal:   d.Journal,
		publisher: d.Publisher,
		log:       log,
	}
}

// Inspect прогоняет кадр через конвейер, сохраняет партию и рассылает сводку.
// Ошибки журнала и рассылки не прерывают проверку.
func (s *InspectionService) Inspect(ctx context.Context, imageData []byte, origin string) (*InspectionOutput, error) {
	if s.inspector == nil {
		return nil, ErrInspectorNotConfigured
	}

	report, err := s.inspector.Inspect(ctx, imageData)
	if err != nil {
		return nil, err
	}

	out := &InspectionOutput{Report: report}
	if s.journal != nil {
		batch, err := s.journal.SaveBatch(ctx, report.Results)
		if err != nil {
			s.log.Warnw("failed to save inspection batch", "origin", origin, "error", err)
		} else {
			out.Batch = batch
			out.Persisted = true
		}
	}
	if out.Batch == nil {
		out.Batch = entity.NewInspectionBatch(uuid.NewString(), time.Now(), report.Results)
	}

	s.log.Infow("frame inspected",
		"origin", origin,
		"batch_id", out.Batch.BatchID,
		"results", len(report.Results),
		"defects", report.DefectCount(),
		"qa_count", report.QACount,
		"persisted", out.Persisted,
	)

	if s.publisher != nil {
		if err := s.publisher.PublishInspection(ctx, origin, out.Batch, report); err != nil {
			s.log.Warnw("failed to publish inspection", "batch_id", out.Batch.BatchID, "error", err)
		}
	}

	return out, nil
}

// Describe возвращает текстовое описание результата.
func (s *InspectionService) Describe(ctx context.Context, out *InspectionOutput) (*entity.Description, error) {
	if s.describer == nil {
		return nil, errors.New("describer is not configured")
	}
	return s.describer.Describe(ctx, out.Report, out.Batch)
}

// ProcessPhoto проверяет фото от пользователя бота и возвращает его в главное меню.
func (s *InspectionService) ProcessPhoto(ctx context.Context, userID, chatID int64, photo []byte) (*InspectionOutput, *entity.Description, error) {
	if _, err := s.users.BeginProcessing(ctx, userID, chatID); err != nil {
		return nil, nil, err
	}

	out, err := s.Inspect(ctx, photo, OriginTelegram)
	if err != nil {
		if _, resetErr := s.users.Cancel(ctx, userID, chatID); resetErr != nil {
			s.log.Warnw("failed to reset user state", "user_id", userID, "error", resetErr)
		}
		return nil, nil, err
	}

	if _, err := s.users.FinishInspection(ctx, userID, chatID, out.Batch.BatchID, out.Report.DefectCount()); err != nil {
		return nil, nil, err
	}

	desc, err := s.Describe(ctx, out)
	if err != nil {
		return out, nil, err
	}
	return out, desc, nil
}

// Records последние строки журнала инспекций.
func (s *InspectionService) Records(ctx context.Context, limit int) ([]entity.InspectionRecord, error) {
	if s.journal == nil {
		return []entity.InspectionRecord{}, nil
	}
	return s.journal.Records(ctx, limit)
}
