package http

import (
	"context"
	"errors"
	"time"

	"github.com/Spok95/bom-tracker/internal/collection"
	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/infra/auth"
	"github.com/Spok95/bom-tracker/internal/views"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Tracker то, что HTTP-оболочке нужно от живой коллекции.
type Tracker interface {
	State() collection.State
	UpdateStatus(ctx context.Context, id string, status bom.TransferStatus) bool
	UpdateExpectedCompletion(ctx context.Context, id string, date *string) bool
	UpdateNotToTransferDetails(ctx context.Context, id, reason, brand string) bool
	UpdatePlannedStart(ctx context.Context, id string, date *string) bool
}

// ImageCache кэш ссылок на картинки; сбрасывается после выкладки новых файлов.
type ImageCache interface {
	Len() int
	Purge()
}

type Options struct {
	Addr          string
	ExposeMetrics bool
	JWTSecret     string
	Views         views.Options
	// ImagesDir раздаётся по ImagesPrefix, если задан (fs-драйвер картинок).
	ImagesDir    string
	ImagesPrefix string
	ImageCache   ImageCache
	WriteTimeout time.Duration
	Now          func() time.Time
}

type Server struct {
	app  *fiber.App
	addr string
	t    Tracker
	opts Options
	log  *zap.Logger
}

func New(t Tracker, opts Options, log *zap.Logger) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ImagesPrefix == "" {
		opts.ImagesPrefix = "/images"
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	s := &Server{addr: opts.Addr, t: t, opts: opts, log: log}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.app.Use(recover.New())

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	if opts.ExposeMetrics {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}
	if opts.ImagesDir != "" {
		s.app.Static(opts.ImagesPrefix, opts.ImagesDir, fiber.Static{MaxAge: 3600})
	}

	api := s.app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/items", s.handleItems)
	api.Get("/items/:id", s.handleItem)
	api.Get("/dashboard", s.handleDashboard)
	api.Get("/export/:view", s.handleExport)

	operator := auth.JWTMiddleware(opts.JWTSecret)
	api.Put("/items/:id/status", operator, s.handleUpdateStatus)
	api.Put("/items/:id/expected-completion", operator, s.handleUpdateExpected)
	api.Put("/items/:id/planned-start", operator, s.handleUpdatePlanned)
	api.Put("/items/:id/hold", operator, s.handleUpdateHold)
	if opts.ImageCache != nil {
		api.Post("/images/purge", operator, s.handlePurgeImages)
	}

	return s
}

// App для app.Test в тестах.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Start() error {
	return s.app.Listen(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	s.log.Error("unexpected http error", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
