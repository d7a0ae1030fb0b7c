package vision

import "errors"

var (
	// ErrUnreadableImage байты не удалось декодировать в кадр
	ErrUnreadableImage = errors.New("unreadable image")

	// ErrGoCVDisabled сборка без тега gocv
	ErrGoCVDisabled = errors.New("gocv build tag is not enabled")
)
