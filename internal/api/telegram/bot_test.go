package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"blister-inspector/internal/container"
	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/infrastructure/report"
	"blister-inspector/internal/infrastructure/storage"
	"blister-inspector/internal/infrastructure/vision"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

func (s *recordingSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (s *recordingSender) photos() []tgbotapi.PhotoConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tgbotapi.PhotoConfig
	for _, c := range s.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

type stubInspector struct {
	report *entity.InspectionReport
	err    error
}

func (s *stubInspector) Inspect(ctx context.Context, data []byte) (*entity.InspectionReport, error) {
	return s.report, s.err
}

func newTestBot(t *testing.T, insp *stubInspector, fetch FileFetcher) (*Bot, *recordingSender, *container.Container) {
	t.Helper()
	if fetch == nil {
		fetch = func(ctx context.Context, fileID string) ([]byte, error) { return []byte("jpeg"), nil }
	}
	c := container.New(container.Deps{
		UserRepo:        storage.NewMemoryUserRepository(),
		Inspector:       insp,
		Describer:       report.NewTextDescriber(),
		Mode:            entity.ModeMock,
		CaptureInterval: time.Second,
	})
	sender := &recordingSender{}
	return newBot(sender, fetch, c, nil), sender, c
}

func command(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 1},
		Chat:     &tgbotapi.Chat{ID: 10},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}
}

func photoMessage() *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1},
		Chat: &tgbotapi.Chat{ID: 10},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90},
			{FileID: "large", Width: 1280},
		},
	}
}

func blisterReport() *entity.InspectionReport {
	return &entity.InspectionReport{
		Results: []entity.InspectionResult{
			{ID: 1, Area: 15000, Circularity: 0.9, Status: entity.StatusApproved},
			{ID: 2, Area: 5000, Circularity: 0.8, Status: entity.StatusEmptyCavity},
		},
		QACount: 2,
		Final:   []byte("annotated"),
	}
}

func TestBot_Commands(t *testing.T) {
	bot, sender, c := newTestBot(t, &stubInspector{report: blisterReport()}, nil)
	ctx := context.Background()

	bot.handleMessage(ctx, command("/check"))
	user, err := c.UserService.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPhoto, user.State)

	bot.handleMessage(ctx, command("/cancel"))
	user, err = c.UserService.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)

	bot.handleMessage(ctx, command("/help"))
	bot.handleMessage(ctx, command("/unknown"))

	require.Equal(t, []string{msgAwaitingPhoto, msgCancelled, msgHelp, msgUnknownCommand}, sender.texts())
}

func TestBot_TextAsksForPhoto(t *testing.T) {
	bot, sender, _ := newTestBot(t, &stubInspector{report: blisterReport()}, nil)
	bot.handleMessage(context.Background(), &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1},
		Chat: &tgbotapi.Chat{ID: 10},
		Text: "привет",
	})
	require.Equal(t, []string{msgSendPhoto}, sender.texts())
}

func TestBot_PhotoIsInspected(t *testing.T) {
	var fetched string
	fetch := func(ctx context.Context, fileID string) ([]byte, error) {
		fetched = fileID
		return []byte("jpeg"), nil
	}
	bot, sender, c := newTestBot(t, &stubInspector{report: blisterReport()}, fetch)
	ctx := context.Background()

	bot.handleMessage(ctx, photoMessage())
	require.Equal(t, "large", fetched)

	texts := sender.texts()
	require.Len(t, texts, 2)
	require.Equal(t, msgProcessing, texts[0])
	require.Contains(t, texts[1], "Контрольный пересчёт: 2")

	photos := sender.photos()
	require.Len(t, photos, 1)
	file, ok := photos[0].File.(tgbotapi.FileBytes)
	require.True(t, ok)
	require.Equal(t, []byte("annotated"), file.Bytes)

	user, err := c.UserService.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
	require.Equal(t, 1, user.Inspected)
	require.Equal(t, 1, user.Rejected)

	bot.handleMessage(ctx, command("/stats"))
	texts = sender.texts()
	require.Contains(t, texts[len(texts)-1], "Отбраковано ячеек: 1")
}

func TestBot_PhotoFailures(t *testing.T) {
	tests := []struct {
		name  string
		insp  *stubInspector
		fetch FileFetcher
		want  string
	}{
		{
			name: "download fails",
			insp: &stubInspector{report: blisterReport()},
			fetch: func(ctx context.Context, fileID string) ([]byte, error) {
				return nil, errors.New("network down")
			},
			want: msgProcessingError,
		},
		{name: "unreadable image", insp: &stubInspector{err: vision.ErrUnreadableImage}, want: msgUnreadable},
		{name: "vision disabled", insp: &stubInspector{err: vision.ErrGoCVDisabled}, want: msgUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, sender, c := newTestBot(t, tt.insp, tt.fetch)
			ctx := context.Background()

			bot.handleMessage(ctx, photoMessage())
			require.Equal(t, []string{msgProcessing, tt.want}, sender.texts())
			require.Empty(t, sender.photos())

			user, err := c.UserService.Get(ctx, 1, 10)
			require.NoError(t, err)
			require.Equal(t, entity.StateMainMenu, user.State)
		})
	}
}

func TestBot_IgnoresMessagesWithoutSender(t *testing.T) {
	bot, sender, _ := newTestBot(t, &stubInspector{report: blisterReport()}, nil)
	bot.handleMessage(context.Background(), &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 10}, Text: "x"})
	require.Empty(t, sender.texts())
}
