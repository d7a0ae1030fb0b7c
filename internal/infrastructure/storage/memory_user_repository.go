package storage

import (
	"context"
	"sync"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// MemoryUserRepository хранит операторов бота в памяти процесса.
// Наружу отдаются копии, поэтому обработчики разных чатов не делят один *User.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[int64]entity.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]entity.User),
	}
}

// Get возвращает оператора по ID; новый создаётся в главном меню.
// Если оператор написал из другого чата, запоминается новый chatID.
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[userID]
	if !exists {
		user = *entity.NewUser(userID, chatID)
	} else if chatID != 0 {
		user.ChatID = chatID
	}
	r.users[userID] = user

	return &user, nil
}

func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	r.users[user.ID] = *user
	r.mu.Unlock()

	return nil
}

// UpdateState меняет состояние известного оператора, неизвестные пропускаются.
func (r *MemoryUserRepository) UpdateState(ctx context.Context, userID int64, state entity.UserState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, exists := r.users[userID]; exists {
		user.SetState(state)
		r.users[userID] = user
	}

	return nil
}

// Len число известных операторов
func (r *MemoryUserRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

var _ port.UserRepository = (*MemoryUserRepository)(nil)
