package entity

// UserState состояние пользователя в диалоге
type UserState string

const (
	StateMainMenu      UserState = "main_menu"      // В главном меню
	StateAwaitingPhoto UserState = "awaiting_photo" // Ожидание фото блистера
	StateProcessing    UserState = "processing"     // Обработка изображения
)

// User представляет оператора, работающего через бота
type User struct {
	ID          int64     // Telegram User ID
	ChatID      int64     // Telegram Chat ID
	State       UserState // Текущее состояние пользователя
	LastBatchID string    // Последняя проверенная партия
	Inspected   int       // Сколько кадров проверено
	Rejected    int       // Сколько ячеек отбраковано
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// RecordInspection учитывает проверенный кадр и возвращает в главное меню
func (u *User) RecordInspection(batchID string, defects int) {
	u.LastBatchID = batchID
	u.Inspected++
	u.Rejected += defects
	u.State = StateMainMenu
}
