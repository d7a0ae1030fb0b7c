package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	app "blister-inspector/internal/application"
	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/infrastructure/vision"
)

const (
	uploadField = "file"
	// processedKey файл итогового кадра рядом с четырьмя снимками
	processedKey = "processed"
)

var allowedExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

type inspectResponse struct {
	Success   bool                      `json:"success"`
	BatchID   string                    `json:"batch_id"`
	Persisted bool                      `json:"persisted"`
	Results   []entity.InspectionResult `json:"results"`
	Defects   int                       `json:"defects"`
	QACount   int                       `json:"qa_count"`
	Images    map[string]string         `json:"images"`
}

func (s *server) inspectHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file part")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "no selected file")
		return
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		writeError(w, http.StatusBadRequest, "file type not allowed, use png, jpg or jpeg")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	out, err := s.Inspections.Inspect(r.Context(), data, app.OriginUpload)
	switch {
	case errors.Is(err, vision.ErrUnreadableImage):
		writeError(w, http.StatusUnprocessableEntity, "image could not be decoded")
		return
	case errors.Is(err, vision.ErrGoCVDisabled), errors.Is(err, app.ErrInspectorNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "inspection is not available")
		return
	case err != nil:
		s.log.Errorw("inspection failed", "file", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "inspection failed")
		return
	}

	images, err := s.saveImages(out.Report, time.Now().UnixMilli())
	if err != nil {
		s.log.Errorw("failed to save result images", "batch_id", out.Batch.BatchID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save result images")
		return
	}

	results := out.Report.Results
	if results == nil {
		results = []entity.InspectionResult{}
	}
	writeJSON(w, http.StatusOK, inspectResponse{
		Success:   true,
		BatchID:   out.Batch.BatchID,
		Persisted: out.Persisted,
		Results:   results,
		Defects:   out.Report.DefectCount(),
		QACount:   out.Report.QACount,
		Images:    images,
	})
}

// saveImages пишет снимки шагов как <ключ>_<unixms>.jpg и возвращает их URL.
func (s *server) saveImages(report *entity.InspectionReport, ts int64) (map[string]string, error) {
	if err := os.MkdirAll(s.ResultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}

	images := make(map[string]string, len(report.Snapshots)+1)
	save := func(key string, jpeg []byte) error {
		if len(jpeg) == 0 {
			return nil
		}
		name := fmt.Sprintf("%s_%d.jpg", key, ts)
		if err := os.WriteFile(filepath.Join(s.ResultsDir, name), jpeg, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		images[key] = "/results/" + name
		return nil
	}

	for _, snap := range report.Snapshots {
		if err := save(snap.Key, snap.JPEG); err != nil {
			return nil, err
		}
	}
	if err := save(processedKey, report.Final); err != nil {
		return nil, err
	}
	return images, nil
}
