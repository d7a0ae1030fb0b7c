package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	app "blister-inspector/internal/application"
	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
	"blister-inspector/internal/infrastructure/storage"
	"blister-inspector/internal/infrastructure/vision"
)

type stubInspector struct {
	report *entity.InspectionReport
	err    error
}

func (s *stubInspector) Inspect(ctx context.Context, data []byte) (*entity.InspectionReport, error) {
	return s.report, s.err
}

type stubProbe struct{ err error }

func (p stubProbe) Stats(ctx context.Context) (*HostStats, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &HostStats{MemTotal: 1024, MemUsedPercent: 50, CPUCount: 4}, nil
}

type stubSource struct{}

func (stubSource) CaptureFrame(ctx context.Context) ([]byte, error) { return nil, port.ErrNoFrame }
func (stubSource) Release() error                                  { return nil }

func sampleReport() *entity.InspectionReport {
	return &entity.InspectionReport{
		Width:  640,
		Height: 480,
		Results: []entity.InspectionResult{
			{ID: 1, Area: 15000, Circularity: 0.91, Status: entity.StatusApproved},
			{ID: 2, Area: 12000, Circularity: 0.31, Status: entity.StatusDeformedPill},
			{ID: 3, Area: 4000, Circularity: 0.88, Status: entity.StatusEmptyCavity},
		},
		QACount: 3,
		Snapshots: []entity.Snapshot{
			{Key: entity.SnapshotOriginal, JPEG: []byte("orig")},
			{Key: entity.SnapshotGrayscale, JPEG: []byte("gray")},
			{Key: entity.SnapshotThresholded, JPEG: []byte("bin")},
			{Key: entity.SnapshotFinalContours, JPEG: []byte("contours")},
		},
		Final: []byte("final"),
	}
}

type testServer struct {
	handler    http.Handler
	resultsDir string
	capture    *app.CaptureService
}

func newTestServer(t *testing.T, insp port.FrameInspector) *testServer {
	t.Helper()

	journal, err := storage.NewJSONLog(filepath.Join(t.TempDir(), "log.json"))
	require.NoError(t, err)

	inspections := app.NewInspectionService(app.InspectionDeps{
		Users:     app.NewUserService(storage.NewMemoryUserRepository()),
		Inspector: insp,
		Journal:   journal,
	})
	open := func(entity.SourceMode) (port.FrameSource, error) { return stubSource{}, nil }
	capture := app.NewCaptureService(inspections, open, entity.ModeMock, time.Second, nil)

	resultsDir := filepath.Join(t.TempDir(), "results")
	h := NewRouter(Deps{
		Inspections:    inspections,
		Capture:        capture,
		ResultsDir:     resultsDir,
		MaxUploadBytes: 1 << 20,
		Version:        "1.0.1",
		Host:           stubProbe{},
	})
	return &testServer{handler: h, resultsDir: resultsDir, capture: capture}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(uploadField, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/inspect", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &stubInspector{report: sampleReport()})
	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, &stubInspector{report: sampleReport()})
	rec := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `name="file"`)
	require.Contains(t, rec.Body.String(), "mock")

	rec = s.do(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInspect_Success(t *testing.T) {
	s := newTestServer(t, &stubInspector{report: sampleReport()})

	rec := s.do(uploadRequest(t, "blister.JPG", []byte("jpeg bytes")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[inspectResponse](t, rec)
	require.True(t, resp.Success)
	require.True(t, resp.Persisted)
	_, err := uuid.Parse(resp.BatchID)
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	require.Equal(t, entity.StatusDeformedPill, resp.Results[1].Status)
	require.Equal(t, 2, resp.Defects)
	require.Equal(t, 3, resp.QACount)

	for _, key := range append(entity.SnapshotKeys, processedKey) {
		url, ok := resp.Images[key]
		require.True(t, ok, key)
		require.True(t, strings.HasPrefix(url, "/results/"+key+"_"), url)
		require.FileExists(t, filepath.Join(s.resultsDir, strings.TrimPrefix(url, "/results/")))
	}

	saved := s.do(httptest.NewRequest(http.MethodGet, resp.Images[processedKey], nil))
	require.Equal(t, http.StatusOK, saved.Code)
	require.Equal(t, "final", saved.Body.String())

	records := s.do(httptest.NewRequest(http.MethodGet, "/api/records?limit=2", nil))
	require.Equal(t, http.StatusOK, records.Code)
	body := decode[struct {
		Records []entity.InspectionRecord `json:"records"`
	}](t, records)
	require.Len(t, body.Records, 2)
	require.Equal(t, resp.BatchID, body.Records[0].BatchID)
}

func TestInspect_EmptyResultsEncodeAsArray(t *testing.T) {
	s := newTestServer(t, &stubInspector{report: &entity.InspectionReport{}})
	rec := s.do(uploadRequest(t, "blank.png", []byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestInspect_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		insp   *stubInspector
		req    func(t *testing.T) *http.Request
		status int
	}{
		{
			name:   "wrong extension",
			insp:   &stubInspector{report: sampleReport()},
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "doc.pdf", []byte("x")) },
			status: http.StatusBadRequest,
		},
		{
			name: "missing file part",
			insp: &stubInspector{report: sampleReport()},
			req: func(t *testing.T) *http.Request {
				var body bytes.Buffer
				mw := multipart.NewWriter(&body)
				require.NoError(t, mw.WriteField("other", "x"))
				require.NoError(t, mw.Close())
				req := httptest.NewRequest(http.MethodPost, "/api/inspect", &body)
				req.Header.Set("Content-Type", mw.FormDataContentType())
				return req
			},
			status: http.StatusBadRequest,
		},
		{
			name: "not multipart",
			insp: &stubInspector{report: sampleReport()},
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/inspect", strings.NewReader("{}"))
			},
			status: http.StatusBadRequest,
		},
		{
			name:   "undecodable image",
			insp:   &stubInspector{err: vision.ErrUnreadableImage},
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "a.png", []byte("x")) },
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "vision disabled",
			insp:   &stubInspector{err: vision.ErrGoCVDisabled},
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "a.png", []byte("x")) },
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "internal error",
			insp:   &stubInspector{err: errors.New("opencv exploded")},
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "a.png", []byte("x")) },
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.insp)
			rec := s.do(tt.req(t))
			require.Equal(t, tt.status, rec.Code)

			resp := decode[errorBody](t, rec)
			require.False(t, resp.Success)
			require.NotEmpty(t, resp.Error)
			require.NotContains(t, resp.Error, "opencv")
		})
	}
}

func TestInspect_TooLarge(t *testing.T) {
	s := newTestServer(t, &stubInspector{report: sampleReport()})
	rec := s.do(uploadRequest(t, "big.jpg", bytes.Repeat([]byte{0xff}, 2<<20)))
	require.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, rec.Code)

	entries, err := os.ReadDir(filepath.Dir(s.resultsDir))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, &stubInspector{report: sampleReport()})
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[statusResponse](t, rec)
	require.Equal(t, "Ready", resp.Status)
	require.Equal(t, "1.0.1", resp.Version)
	require.Equal(t, "mock", resp.Mode)
	require.NotNil(t, resp.Host)
	require.Equal(t, 4, resp.Host.CPUCount)
}

func TestStatus_WithoutHostStats(t *testing.T) {
	h := NewRouter(Deps{Version: "1.0.1", Host: stubProbe{err: errors.New("no proc")}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "host")
}

func TestModeSwitch(t *testing.T) {
	s := newTestServer(t, &stubInspector{report: sampleReport()})

	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/config/mode", strings.NewReader(`{"use_camera":true}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, modeResponse{Success: true, NewMode: "camera"}, decode[modeResponse](t, rec))
	require.Equal(t, entity.ModeCamera, s.capture.Mode())

	rec = s.do(httptest.NewRequest(http.MethodPost, "/api/config/mode", strings.NewReader(`{"use_camera":false}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, entity.ModeMock, s.capture.Mode())
}

func TestModeSwitch_BadRequest(t *testing.T) {
	s := newTestServer(t, &stubInspector{report: sampleReport()})

	for _, body := range []string{`not json`, `{}`, `{"use_camera":"yes"}`} {
		rec := s.do(httptest.NewRequest(http.MethodPost, "/api/config/mode", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	require.Equal(t, entity.ModeMock, s.capture.Mode())
}

func TestRecords_BadLimit(t *testing.T) {
	s := newTestServer(t, &stubInspector{report: sampleReport()})
	for _, q := range []string{"0", "-3", "abc"} {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/records?limit="+q, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestBatchQR(t *testing.T) {
	s := newTestServer(t, &stubInspector{report: sampleReport()})

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/batches/qr?id="+uuid.NewString(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/batches/qr?id=nope", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &stubInspector{report: sampleReport()})
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/inspect", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
