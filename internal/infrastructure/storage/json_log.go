package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// JSONLog журнал инспекций в одном JSON-файле: массив строк InspectionRecord.
type JSONLog struct {
	mu    sync.Mutex
	path  string
	now   func() time.Time
	newID func() string
}

// NewJSONLog создаёт каталог и пустой журнал, если файла ещё нет.
func NewJSONLog(path string) (*JSONLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0):
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			return nil, fmt.Errorf("init inspection log: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("stat inspection log: %w", err)
	}

	return &JSONLog{path: path, now: time.Now, newID: uuid.NewString}, nil
}

// SaveBatch дописывает строки партии в конец журнала.
func (l *JSONLog) SaveBatch(ctx context.Context, results []entity.InspectionResult) (*entity.InspectionBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := entity.NewInspectionBatch(l.newID(), l.now(), results)

	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		return nil, err
	}
	records = append(records, batch.Records()...)

	if err := l.write(records); err != nil {
		return nil, err
	}
	return batch, nil
}

// Records возвращает последние limit строк в порядке записи.
func (l *JSONLog) Records(ctx context.Context, limit int) ([]entity.InspectionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	records, err := l.read()
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func (l *JSONLog) read() ([]entity.InspectionRecord, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []entity.InspectionRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read inspection log: %w", err)
	}

	records := []entity.InspectionRecord{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode inspection log: %w", err)
	}
	return records, nil
}

// write пишет во временный файл и переименовывает, чтобы не оставить полузаписанный журнал.
func (l *JSONLog) write(records []entity.InspectionRecord) error {
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("encode inspection log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp log: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp log: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace inspection log: %w", err)
	}
	return nil
}

var _ port.InspectionLog = (*JSONLog)(nil)
