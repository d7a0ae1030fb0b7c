package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"blister-inspector/internal/container"
	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/infrastructure/vision"
)

const (
	msgStart = `👋 Привет! Я бот контроля блистеров.

📸 Отправьте фото блистера, и я проверю каждую ячейку: на месте ли таблетка и правильной ли она формы.

📋 Команды:
/check — начать проверку блистера
/stats — ваша статистика
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото блистера
2️⃣ Бот найдёт ячейки и оценит площадь и округлость каждой
3️⃣ Вы получите вердикт по ячейкам и фото с разметкой

💡 Рекомендации:
• Снимайте сверху при ровном освещении
• Блистер должен целиком попадать в кадр
• Используйте тёмный однотонный фон

📋 Команды:
/check — начать проверку
/stats — статистика
/cancel — отменить операцию`

	msgAwaitingPhoto   = "📸 Отправьте фото блистера для проверки."
	msgCancelled       = "❌ Операция отменена. Отправьте /check для новой проверки."
	msgSendPhoto       = "📸 Пожалуйста, отправьте фото блистера для проверки."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Обрабатываю изображение..."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте сделать другое фото."
	msgUnreadable      = "⚠️ Не удалось прочитать изображение. Отправьте фото в формате JPG или PNG."
	msgUnavailable     = "⚠️ Проверка сейчас недоступна. Попробуйте позже."
)

// Sender отправляет сообщения в Telegram, его реализует *tgbotapi.BotAPI
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// FileFetcher скачивает файл Telegram по его ID
type FileFetcher func(ctx context.Context, fileID string) ([]byte, error)

// Bot представляет Telegram-бота
type Bot struct {
	api      *tgbotapi.BotAPI
	sender   Sender
	fetch    FileFetcher
	services *container.Container
	log      *zap.SugaredLogger
}

// NewBot авторизуется в Telegram и создаёт бота
func NewBot(token string, services *container.Container, log *zap.SugaredLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	log.Infow("telegram authorized", "account", api.Self.UserName)

	b := newBot(api, nil, services, log)
	b.api = api
	b.fetch = b.downloadFile
	return b, nil
}

func newBot(sender Sender, fetch FileFetcher, services *container.Container, log *zap.SugaredLogger) *Bot {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Bot{
		sender:   sender,
		fetch:    fetch,
		services: services,
		log:      log,
	}
}

// Run обрабатывает обновления до отмены контекста
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	user, err := b.services.UserService.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.Errorw("failed to get user", "user_id", msg.From.ID, "error", err)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg, user)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	users := b.services.UserService
	var err error

	switch msg.Command() {
	case "start":
		_, err = users.Cancel(ctx, user.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "check":
		_, err = users.BeginCheck(ctx, user.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgAwaitingPhoto)

	case "cancel":
		_, err = users.Cancel(ctx, user.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgCancelled)

	case "stats":
		b.sendMessage(msg.Chat.ID, statsText(user))

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}

	if err != nil {
		b.log.Errorw("failed to update user state", "user_id", user.ID, "command", msg.Command(), "error", err)
	}
}

// handlePhoto проверяет фото и отвечает вердиктом и размеченным кадром
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	b.sendMessage(msg.Chat.ID, msgProcessing)

	// Последний размер в списке самый крупный
	photo := msg.Photo[len(msg.Photo)-1]

	imageData, err := b.fetch(ctx, photo.FileID)
	if err != nil {
		b.log.Errorw("failed to download photo", "user_id", user.ID, "error", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		if _, err := b.services.UserService.Cancel(ctx, user.ID, msg.Chat.ID); err != nil {
			b.log.Errorw("failed to reset user state", "user_id", user.ID, "error", err)
		}
		return
	}

	out, desc, err := b.services.InspectionService.ProcessPhoto(ctx, user.ID, msg.Chat.ID, imageData)
	if err != nil {
		b.log.Warnw("photo inspection failed", "user_id", user.ID, "bytes", len(imageData), "error", err)
		b.sendMessage(msg.Chat.ID, failureText(err))
		if out == nil {
			return
		}
	}

	if desc != nil {
		b.sendMessage(msg.Chat.ID, desc.Text)
	}
	if out != nil && len(out.Report.Final) > 0 {
		b.sendPhoto(msg.Chat.ID, out.Batch.BatchID, out.Report.Final)
	}
}

func failureText(err error) string {
	switch {
	case errors.Is(err, vision.ErrUnreadableImage):
		return msgUnreadable
	case errors.Is(err, vision.ErrGoCVDisabled):
		return msgUnavailable
	default:
		return msgProcessingError
	}
}

func statsText(u *entity.User) string {
	if u.Inspected == 0 {
		return "📊 Вы ещё не проверили ни одного блистера."
	}
	return fmt.Sprintf("📊 Проверено кадров: %d\n❌ Отбраковано ячеек: %d\n🏷 Последняя партия: %s",
		u.Inspected, u.Rejected, u.LastBatchID)
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.log.Warnw("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) sendPhoto(chatID int64, batchID string, jpeg []byte) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: batchID + ".jpg", Bytes: jpeg})
	photo.Caption = "Партия " + batchID
	if _, err := b.sender.Send(photo); err != nil {
		b.log.Warnw("failed to send photo", "chat_id", chatID, "batch_id", batchID, "error", err)
	}
}
