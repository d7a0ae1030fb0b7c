package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// InspectionLog журнал инспекций в таблицах batches и records.
type InspectionLog struct {
	db    *DB
	now   func() time.Time
	newID func() string
}

// NewInspectionLog создаёт журнал поверх открытой базы.
func NewInspectionLog(db *DB) *InspectionLog {
	return &InspectionLog{db: db, now: time.Now, newID: uuid.NewString}
}

// SaveBatch сохраняет партию и её строки в одной транзакции.
func (l *InspectionLog) SaveBatch(ctx context.Context, results []entity.InspectionResult) (*entity.InspectionBatch, error) {
	batch := entity.NewInspectionBatch(l.newID(), l.now().UTC(), results)

	l.db.mu.Lock()
	defer l.db.mu.Unlock()

	tx, err := l.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	defects := 0
	for _, r := range batch.Results {
		if r.Status.IsDefect() {
			defects++
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (batch_id, timestamp, total, defects) VALUES (?, ?, ?, ?)`,
		batch.BatchID, batch.Timestamp, len(batch.Results), defects,
	); err != nil {
		return nil, fmt.Errorf("failed to insert batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (batch_id, contour_id, area_px, circularity, status, defect_type) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range batch.Records() {
		if _, err := stmt.ExecContext(ctx,
			rec.BatchID, rec.ContourID, rec.AreaPx, rec.Circularity, rec.Status.String(), rec.DefectType,
		); err != nil {
			return nil, fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	return batch, nil
}

// Records возвращает последние limit строк в порядке записи.
func (l *InspectionLog) Records(ctx context.Context, limit int) ([]entity.InspectionRecord, error) {
	l.db.mu.RLock()
	defer l.db.mu.RUnlock()

	query := `
	SELECT r.batch_id, b.timestamp, r.contour_id, r.area_px, r.circularity, r.status, r.defect_type
	FROM records r JOIN batches b ON b.batch_id = r.batch_id
	ORDER BY r.id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []entity.InspectionRecord{}
	for rows.Next() {
		var (
			rec    entity.InspectionRecord
			status string
		)
		if err := rows.Scan(&rec.BatchID, &rec.Timestamp, &rec.ContourID, &rec.AreaPx, &rec.Circularity, &status, &rec.DefectType); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if rec.Status, err = entity.ParseStatus(status); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// запрос идёт от новых к старым, наружу отдаём в порядке записи
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

var _ port.InspectionLog = (*InspectionLog)(nil)
