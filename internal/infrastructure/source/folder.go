package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"blister-inspector/internal/domain/port"
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// FolderSource по кругу отдаёт изображения из папки с образцами.
type FolderSource struct {
	mu    sync.Mutex
	dir   string
	files []string
	next  int
	log   *zap.SugaredLogger
}

// NewFolderSource собирает список изображений папки в алфавитном порядке.
// Пустая папка не ошибка: CaptureFrame будет возвращать port.ErrNoFrame.
func NewFolderSource(dir string, log *zap.SugaredLogger) (*FolderSource, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sample dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	if len(files) == 0 {
		log.Warnw("no sample images found", "dir", dir)
	} else {
		log.Infow("sample folder opened", "dir", dir, "images", len(files))
	}

	return &FolderSource{dir: dir, files: files, log: log}, nil
}

// Len количество изображений в ротации.
func (s *FolderSource) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// CaptureFrame читает следующий файл, после последнего возвращается к первому.
func (s *FolderSource) CaptureFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if len(s.files) == 0 {
		s.mu.Unlock()
		return nil, port.ErrNoFrame
	}
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sample %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// Release нечего освобождать.
func (s *FolderSource) Release() error {
	s.log.Debugw("sample folder released", "dir", s.dir)
	return nil
}

var _ port.FrameSource = (*FolderSource)(nil)
