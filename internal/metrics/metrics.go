package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgcsc_login_attempts_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	AccessDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgcsc_access_denied_total",
			Help: "Requests rejected by the authorization guard",
		},
		[]string{"reason"},
	)

	FranchiseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgcsc_franchise_transitions_total",
			Help: "Franchise status transitions",
		},
		[]string{"from", "to"},
	)

	CredentialsProvisioned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgcsc_credentials_provisioned_total",
			Help: "Login credentials created, by role",
		},
		[]string{"role"},
	)
)

// Handler exposes the default registry on a Fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
