package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/machikado-app/api/internal/platform/config"
	"github.com/machikado-app/api/internal/repositories"
	"github.com/machikado-app/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Moderation    services.ModerationService
	Notifications services.NotificationService
	Media         services.MediaService
	Maps          services.MapsService
	System        services.SystemService
}

// Infrastructure carries the externally constructed collaborators (mail relay,
// object store, pubsub topic) the service layer builds on.
type Infrastructure struct {
	Composer   services.NotificationComposer
	MailSender services.MailSender
	Publisher  services.ContentPublisher
	MediaStore services.VariantStore
	Build      services.BuildInfo
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories, services, and supporting infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries and stub infrastructure.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(cfg, reg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients or cached connections.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, reg repositories.Registry, infra Infrastructure) (Services, error) {
	var svc Services

	clock := infra.Clock
	if clock == nil {
		clock = time.Now
	}

	usersRepo := reg.Users()
	shopsRepo := reg.Shops()
	eventsRepo := reg.Events()
	if usersRepo == nil || shopsRepo == nil || eventsRepo == nil {
		return Services{}, errors.New("user, shop and event repositories are required")
	}

	moderation, err := services.NewModerationService(services.ModerationServiceDeps{
		Users:     usersRepo,
		Shops:     shopsRepo,
		Events:    eventsRepo,
		Publisher: infra.Publisher,
		Clock:     clock,
		Logger:    infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build moderation service: %w", err)
	}
	svc.Moderation = moderation

	if infra.Composer != nil && infra.MailSender != nil {
		notifications, err := services.NewNotificationService(services.NotificationServiceDeps{
			Composer:   infra.Composer,
			Sender:     infra.MailSender,
			Users:      usersRepo,
			AdminEmail: cfg.Notify.AdminEmail,
			Clock:      clock,
			Logger:     infra.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build notification service: %w", err)
		}
		svc.Notifications = notifications
	}

	if infra.MediaStore != nil {
		media, err := services.NewMediaService(services.MediaServiceDeps{
			Store:  infra.MediaStore,
			Shops:  shopsRepo,
			Events: eventsRepo,
			Clock:  clock,
			Logger: infra.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build media service: %w", err)
		}
		svc.Media = media
	}

	maps, err := services.NewMapsService(services.MapsServiceDeps{
		Timeout:      cfg.Maps.Timeout,
		MaxRedirects: cfg.Maps.MaxRedirects,
		Logger:       infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build maps service: %w", err)
	}
	svc.Maps = maps

	if healthRepo := reg.Health(); healthRepo != nil {
		build := infra.Build
		if build.Environment == "" {
			build.Environment = cfg.Security.Environment
		}
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            clock,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = system
	}

	return svc, nil
}
