// Package server assembles the HTTP application: middleware, services and
// every route of the API.
package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"sgcsc-backend/internal/access"
	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/audit"
	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/catalog"
	"sgcsc-backend/internal/config"
	"sgcsc-backend/internal/content"
	"sgcsc-backend/internal/dashboard"
	"sgcsc-backend/internal/franchise"
	"sgcsc-backend/internal/logger"
	"sgcsc-backend/internal/metrics"
	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/store"
	"sgcsc-backend/internal/student"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type Deps struct {
	Config  *config.Config
	Store   store.Store
	Revoker auth.Revoker
	Log     *zap.Logger
}

// Server holds the assembled app and the services behind it.
type Server struct {
	App   *fiber.App
	Creds *auth.CredentialService
}

// ErrorHandler renders every error as {"error": message}. Errors that are
// not *fiber.Error are logged and hidden behind a generic 500.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var e *fiber.Error
		if errors.As(err, &e) {
			return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
		}
		log.Error("unexpected error",
			zap.String("request_id", logger.RequestID(c)),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
}

func New(d Deps) *Server {
	cfg, st, log := d.Config, d.Store, d.Log

	creds := auth.NewCredentialService(st, cfg.BcryptCost)
	issuer := auth.NewIssuer(creds, cfg.JWTSecret, cfg.SessionTTL)
	guard := auth.NewGuard(issuer, st, d.Revoker, log)
	scoper := access.NewScoper(st)

	franchises := franchise.NewService(st, creds, log)
	students := student.NewService(st, creds, scoper, log)
	courses := catalog.NewService(st, log)
	pages := content.NewService(st, log)
	stats := dashboard.NewService(st, scoper)

	app := fiber.New(fiber.Config{
		AppName:      "sgcsc-backend",
		ErrorHandler: ErrorHandler(log),
	})
	app.Use(recover.New())
	app.Use(logger.RequestLogger(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())

	var (
		all    = []models.Role{models.RoleAdmin, models.RoleFranchise, models.RoleStudent}
		admin  = guard.Require(models.RoleAdmin)
		staff  = guard.Require(models.RoleAdmin, models.RoleFranchise)
		anyone = guard.Require(all...)
		pupil  = guard.Require(models.RoleStudent)
	)

	api := app.Group("/api")

	// Auth
	api.Post("/auth/seed-admin", auth.SeedAdminHandler(creds, log))
	api.Post("/auth/login", loginLimiter(cfg.LoginRateLimit), auth.LoginHandler(issuer, log))
	api.Post("/auth/logout", guard.RequireProfile(all...), auth.LogoutHandler(d.Revoker))
	api.Get("/auth/me", guard.RequireProfile(all...), auth.MeHandler(st))

	// Public verification and directory
	public := api.Group("/public")
	public.Get("/franchises", franchise.PublicListHandler(franchises))
	public.Get("/franchises/:instituteId", franchise.VerifyHandler(franchises))
	public.Get("/students/:enrollmentNo", student.VerifyHandler(students))
	public.Get("/admit-cards/:enrollmentNo", content.LookupHandler(pages.AdmitCards))
	public.Get("/certificates/:enrollmentNo", content.LookupHandler(pages.Certificates))
	public.Get("/results/:enrollmentNo", content.LookupHandler(pages.Results))

	// Franchises
	fr := api.Group("/franchises")
	fr.Post("/register", franchise.RegisterHandler(franchises))
	fr.Get("/me", guard.RequireProfile(models.RoleFranchise), franchise.MeHandler(franchises))
	fr.Get("/", admin, franchise.ListHandler(franchises))
	fr.Post("/", admin, franchise.CreateHandler(franchises))
	fr.Get("/:id", admin, franchise.GetHandler(franchises))
	fr.Put("/:id", admin, franchise.UpdateHandler(franchises))
	fr.Delete("/:id", admin, franchise.DeleteHandler(franchises))
	fr.Post("/:id/approve", admin, franchise.ApproveHandler(franchises))
	fr.Patch("/:id/status", admin, franchise.StatusHandler(franchises))
	fr.Post("/:id/toggle", admin, franchise.ToggleHandler(franchises))

	// Students
	sr := api.Group("/students")
	sr.Get("/export", staff, student.ExportHandler(students))
	sr.Get("/me", pupil, student.MeHandler(students))
	sr.Get("/me/admit-cards", pupil, content.MineHandler(pages.AdmitCards))
	sr.Get("/me/certificates", pupil, content.MineHandler(pages.Certificates))
	sr.Get("/me/results", pupil, content.MineHandler(pages.Results))
	sr.Get("/", staff, student.ListHandler(students))
	sr.Post("/", staff, student.CreateHandler(students))
	sr.Get("/:id", anyone, student.GetHandler(students))
	sr.Put("/:id", staff, student.UpdateHandler(students))
	sr.Delete("/:id", admin, student.DeleteHandler(students))

	// Catalog
	cr := api.Group("/courses")
	cr.Get("/", catalog.ListCoursesHandler(courses))
	cr.Get("/:id", catalog.GetCourseHandler(courses))
	cr.Post("/", admin, catalog.CreateCourseHandler(courses))
	cr.Put("/:id", admin, catalog.UpdateCourseHandler(courses))
	cr.Delete("/:id", admin, catalog.DeleteCourseHandler(courses))

	sub := api.Group("/subjects")
	sub.Get("/", catalog.ListSubjectsHandler(courses))
	sub.Post("/", admin, catalog.CreateSubjectHandler(courses))
	sub.Put("/:id", admin, catalog.UpdateSubjectHandler(courses))
	sub.Delete("/:id", admin, catalog.DeleteSubjectHandler(courses))

	// Content
	content.Routes(api.Group("/admit-cards"), pages.AdmitCards.Collection, admin, admin)
	content.Routes(api.Group("/certificates"), pages.Certificates.Collection, admin, admin)
	content.Routes(api.Group("/results"), pages.Results.Collection, admin, admin)
	content.Routes(api.Group("/materials"), pages.Materials, anyone, admin)
	content.Routes(api.Group("/assignments"), pages.Assignments, anyone, admin)
	content.Routes(api.Group("/members"), pages.Members, nil, admin)
	content.Routes(api.Group("/gallery"), pages.Gallery, nil, admin)
	api.Get("/settings", content.SettingsHandler(pages))
	api.Put("/settings", admin, content.SaveSettingsHandler(pages))

	// Dashboard and audit trail
	api.Get("/dashboard/stats", staff, dashboard.StatsHandler(stats))
	api.Get("/audit-logs", staff, audit.ListAuditLogsHandler(st))

	return &Server{App: app, Creds: creds}
}

func loginLimiter(perMinute int) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			metrics.LoginAttempts.WithLabelValues("throttled").Inc()
			return fiber.NewError(fiber.StatusTooManyRequests, "too many login attempts, try again later")
		},
	})
}

func normalizeOrigins(raw string) string {
	origins := strings.Split(raw, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return strings.Join(origins, ",")
}

// SeedAdmin creates the first ADMIN from configuration. An existing ADMIN is
// not an error.
func (s *Server) SeedAdmin(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.SeedAdminUsername == "" || cfg.SeedAdminPassword == "" {
		return nil
	}
	cred, err := s.Creds.SeedAdmin(ctx, cfg.SeedAdminUsername, cfg.SeedAdminPassword, "")
	if errors.Is(err, apperrors.ErrConflict) {
		log.Info("admin already seeded, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	metrics.CredentialsProvisioned.WithLabelValues(string(models.RoleAdmin)).Inc()
	log.Info("admin seeded from configuration", zap.String("username", cred.Username))
	return nil
}
