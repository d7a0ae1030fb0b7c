package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/skip2/go-qrcode"

	"blister-inspector/internal/domain/entity"
)

const (
	defaultRecordsLimit = 100
	maxRecordsLimit     = 1000
	qrSize              = 256
)

// HostStats загрузка машины, на которой идёт инспекция.
type HostStats struct {
	MemTotal       uint64  `json:"mem_total"`
	MemUsedPercent float64 `json:"mem_used_percent"`
	CPUPercent     float64 `json:"cpu_percent"`
	CPUCount       int     `json:"cpu_count"`
}

// HostProbe источник HostStats.
type HostProbe interface {
	Stats(ctx context.Context) (*HostStats, error)
}

// SystemProbe читает показатели через gopsutil.
type SystemProbe struct{}

func (SystemProbe) Stats(ctx context.Context) (*HostStats, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	stats := &HostStats{MemTotal: vm.Total, MemUsedPercent: vm.UsedPercent}

	// интервал 0 сравнивает с предыдущим вызовом, запрос не блокируется
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		stats.CPUCount = n
	}
	return stats, nil
}

type statusResponse struct {
	Status  string     `json:"status"`
	Version string     `json:"version"`
	Mode    string     `json:"mode"`
	Host    *HostStats `json:"host,omitempty"`
}

func (s *server) statusHandler(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Status: "Ready", Version: s.Version, Mode: string(s.mode())}

	host, err := s.Host.Stats(r.Context())
	if err != nil {
		s.log.Warnw("host stats unavailable", "error", err)
	} else {
		resp.Host = host
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *server) mode() entity.SourceMode {
	if s.Capture == nil {
		return entity.ModeMock
	}
	return s.Capture.Mode()
}

type modeRequest struct {
	UseCamera *bool `json:"use_camera"`
}

type modeResponse struct {
	Success bool   `json:"success"`
	NewMode string `json:"new_mode"`
}

func (s *server) modeHandler(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UseCamera == nil {
		writeError(w, http.StatusBadRequest, "use_camera is required")
		return
	}
	if s.Capture == nil {
		writeError(w, http.StatusServiceUnavailable, "capture is not configured")
		return
	}

	mode := s.Capture.SetMode(entity.ModeFromCamera(*req.UseCamera))
	writeJSON(w, http.StatusOK, modeResponse{Success: true, NewMode: string(mode)})
}

func (s *server) recordsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecordsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecordsLimit)
	}

	records, err := s.Inspections.Records(r.Context(), limit)
	if err != nil {
		s.log.Errorw("failed to read inspection records", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read records")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// qrHandler печатает QR-метку с идентификатором партии для прослеживаемости.
func (s *server) qrHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a batch uuid")
		return
	}

	png, err := qrcode.Encode(id.String(), qrcode.Medium, qrSize)
	if err != nil {
		s.log.Errorw("failed to encode qr", "batch_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render label")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	_, _ = w.Write(png)
}
