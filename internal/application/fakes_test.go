package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

type fakeInspector struct {
	report *entity.InspectionReport
	err    error
	calls  int
	last   []byte
}

func (f *fakeInspector) Inspect(ctx context.Context, data []byte) (*entity.InspectionReport, error) {
	f.calls++
	f.last = data
	return f.report, f.err
}

type fakeJournal struct {
	mu      sync.Mutex
	batches []*entity.InspectionBatch
	err     error
}

func (f *fakeJournal) SaveBatch(ctx context.Context, results []entity.InspectionResult) (*entity.InspectionBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	b := entity.NewInspectionBatch("saved-batch", time.Unix(0, 0), results)
	f.batches = append(f.batches, b)
	return b, nil
}

func (f *fakeJournal) Records(ctx context.Context, limit int) ([]entity.InspectionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.InspectionRecord
	for _, b := range f.batches {
		out = append(out, b.Records()...)
	}
	return out, nil
}

type fakePublisher struct {
	origins []string
	err     error
}

func (f *fakePublisher) PublishInspection(ctx context.Context, origin string, batch *entity.InspectionBatch, report *entity.InspectionReport) error {
	f.origins = append(f.origins, origin)
	return f.err
}

type fakeDescriber struct{}

func (fakeDescriber) Describe(ctx context.Context, r *entity.InspectionReport, b *entity.InspectionBatch) (*entity.Description, error) {
	return &entity.Description{Text: b.BatchID}, nil
}

type fakeSource struct {
	name     string
	frames   [][]byte
	released bool
}

func (f *fakeSource) CaptureFrame(ctx context.Context) ([]byte, error) {
	if len(f.frames) == 0 {
		return nil, port.ErrNoFrame
	}
	frame := f.frames[0]
	f.frames = f.frames[1:]
	return frame, nil
}

func (f *fakeSource) Release() error {
	f.released = true
	return nil
}

var errBoom = errors.New("boom")

func sampleReport() *entity.InspectionReport {
	return &entity.InspectionReport{
		Results: []entity.InspectionResult{
			{ID: 1, Area: 20000, Circularity: 0.9, Status: entity.StatusApproved},
			{ID: 2, Area: 4000, Circularity: 0.9, Status: entity.StatusEmptyCavity},
		},
		QACount: 2,
	}
}
