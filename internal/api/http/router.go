package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	app "blister-inspector/internal/application"
)

// Deps всё, что нужно обработчикам HTTP.
type Deps struct {
	Inspections    *app.InspectionService
	Capture        *app.CaptureService
	Live           http.Handler // websocket живой ленты, может отсутствовать
	ResultsDir     string
	MaxUploadBytes int64
	Version        string
	Host           HostProbe
	Logger         *zap.SugaredLogger
}

type server struct {
	Deps
	log *zap.SugaredLogger
}

// NewRouter регистрирует маршруты панели оператора и оборачивает их логированием запросов.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if d.Host == nil {
		d.Host = SystemProbe{}
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 16 << 20
	}
	s := &server{Deps: d, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.indexHandler)
	mux.HandleFunc("GET /healthz", s.healthHandler)
	mux.HandleFunc("POST /api/inspect", s.inspectHandler)
	mux.HandleFunc("GET /api/status", s.statusHandler)
	mux.HandleFunc("POST /api/config/mode", s.modeHandler)
	mux.HandleFunc("GET /api/records", s.recordsHandler)
	mux.HandleFunc("GET /api/batches/qr", s.qrHandler)
	mux.Handle("GET /results/", http.StripPrefix("/results/", http.FileServer(http.Dir(d.ResultsDir))))
	if d.Live != nil {
		mux.Handle("GET /api/live", d.Live)
	}

	return loggingMiddleware(log, mux)
}

func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func loggingMiddleware(log *zap.SugaredLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Infow("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lrw.statusCode,
			"duration", time.Since(start),
		)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(statusCode int) {
	lrw.statusCode = statusCode
	lrw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack отдаёт соединение для /api/live.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Success: false, Error: msg})
}
