package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"

	"wellness/internal/core"
)

// Set holds every handler mounted under /api.
type Set struct {
	Cron         *CronHandler
	Preferences  *PreferenceHandler
	Gamification *GamificationHandler
	Devices      *DeviceHandler
}

// Routes returns the registrar for the /api group.
//
//	GET    /cron/alerts            cron secret
//	GET    /alerts/preferences     session
//	PUT    /alerts/preferences     session
//	POST   /gamification/xp        session, rate limited per user
//	POST   /push/devices           session
//	DELETE /push/devices/{token}   session
func Routes(srv *core.Server, set Set) core.RouteRegistrar {
	xpLimit := srv.Config.Gamification.XPRateLimitPerMinute

	return func(r chi.Router) {
		r.With(srv.CronSecretMiddleware(srv.Config.Security.CronSecret)).
			Get("/cron/alerts", set.Cron.RunAlerts)

		r.Group(func(r chi.Router) {
			r.Use(srv.AuthMiddleware)

			r.Route("/alerts/preferences", set.Preferences.RegisterRoutes)
			r.Route("/push/devices", set.Devices.RegisterRoutes)
			r.Route("/gamification", func(r chi.Router) {
				r.Use(srv.RateLimit("xp", xpLimit, time.Minute))
				set.Gamification.RegisterRoutes(r)
			})
		})
	}
}
