package container

import (
	"time"

	"go.uber.org/zap"

	app "blister-inspector/internal/application"
	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// Deps инфраструктура, из которой собираются сервисы.
type Deps struct {
	UserRepo        port.UserRepository
	Inspector       port.FrameInspector
	Describer       port.ReportDescriber
	Journal         port.InspectionLog
	Publisher       port.BatchPublisher
	OpenSource      app.SourceOpener
	Mode            entity.SourceMode
	CaptureInterval time.Duration
	Logger          *zap.SugaredLogger
}

type Container struct {
	UserService       *app.UserService
	InspectionService *app.InspectionService
	CaptureService    *app.CaptureService
}

func New(d Deps) *Container {
	userService := app.NewUserService(d.UserRepo)
	inspectionService := app.NewInspectionService(app.InspectionDeps{
		Users:     userService,
		Inspector: d.Inspector,
		Describer: d.Describer,
		Journal:   d.Journal,
		Publisher: d.Publisher,
		Logger:    d.Logger,
	})
	captureService := app.NewCaptureService(inspectionService, d.OpenSource, d.Mode, d.CaptureInterval, d.Logger)

	return &Container{
		UserService:       userService,
		InspectionService: inspectionService,
		CaptureService:    captureService,
	}
}
