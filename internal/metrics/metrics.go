// Package metrics defines the Prometheus counters emitted by the auth core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counter set for the token lifecycle. All counters are
// safe for concurrent use.
type Metrics struct {
	LoginSuccess         prometheus.Counter
	LoginFailure         prometheus.Counter
	LoginRateLimited     prometheus.Counter
	RefreshSuccess       prometheus.Counter
	RefreshFailure       prometheus.Counter
	RefreshReuseDetected prometheus.Counter
	Logout               prometheus.Counter
	RegistrationSuccess  prometheus.Counter
	RegistrationConflict prometheus.Counter
	PasswordChange       prometheus.Counter
}

// New registers the counter set on reg and returns it.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vidtube",
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		LoginSuccess:         counter("login_success_total", "Successful logins."),
		LoginFailure:         counter("login_failure_total", "Failed logins (bad credentials or unknown user)."),
		LoginRateLimited:     counter("login_rate_limited_total", "Logins rejected by the rate limiter."),
		RefreshSuccess:       counter("refresh_success_total", "Successful refresh token rotations."),
		RefreshFailure:       counter("refresh_failure_total", "Failed refresh attempts."),
		RefreshReuseDetected: counter("refresh_reuse_detected_total", "Refresh attempts presenting a superseded token."),
		Logout:               counter("logout_total", "Logouts."),
		RegistrationSuccess:  counter("registration_success_total", "Accounts created."),
		RegistrationConflict: counter("registration_conflict_total", "Registrations rejected as duplicates."),
		PasswordChange:       counter("password_change_total", "Successful password changes."),
	}
}
