package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/checkin-service/internal/api/http/handlers"
	"github.com/spec-kit/checkin-service/internal/auth"
	"github.com/spec-kit/checkin-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Checkin        *handlers.CheckinHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/players/register", cfg.Auth.RegisterPlayer)
	authGroup.Post("/players/login", cfg.Auth.LoginPlayer)
	authGroup.Post("/staff/login", cfg.Auth.LoginStaff)

	qr := app.Group("/qr", cfg.AuthMiddleware.Handle)
	qr.Post("/generate", auth.RequireAnyRole(), cfg.Checkin.GenerateQR)
	qr.Post("/scan", auth.RequireStaffRole(domain.StaffRoleCoach, domain.StaffRoleAdmin), cfg.Checkin.ScanQR)
	qr.Post("/:id/expire", auth.RequireStaffRole(domain.StaffRoleCoach, domain.StaffRoleAdmin), cfg.Checkin.ExpireQR)

	staffOnly := auth.RequireStaffRole(domain.StaffRoleCoach, domain.StaffRoleAdmin)
	app.Post("/attendance/manual", cfg.AuthMiddleware.Handle, staffOnly, cfg.Checkin.ManualAttendance)
	app.Get("/players/:id/audit", cfg.AuthMiddleware.Handle, staffOnly, cfg.Checkin.ListAudit)
	app.Get("/sessions/:id/attendance", cfg.AuthMiddleware.Handle, staffOnly, cfg.Checkin.SessionAttendance)
}
