package billing

import (
	"log/slog"
	"net/url"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInvalidator registers a hook called after every subscription write.
// Multiple invalidators are called in registration order.
func WithInvalidator(inv Invalidator) ServiceOption {
	return func(s *Service) {
		if inv != nil {
			s.invalidators = append(s.invalidators, inv)
		}
	}
}

// WithWorkspaceGuard sets the check that an account may purchase for a workspace.
func WithWorkspaceGuard(guard WorkspaceGuard) ServiceOption {
	return func(s *Service) {
		s.guard = guard
	}
}

// WithBaseURL sets the absolute application URL that return paths are resolved against.
// Panics if the URL is not absolute.
func WithBaseURL(raw string) ServiceOption {
	return func(s *Service) {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			panic("billing: base URL must be absolute, got " + raw)
		}
		s.baseURL = u
	}
}

// WithReturnPaths sets the default success and cancel paths.
// Empty values keep the defaults.
func WithReturnPaths(success, cancel string) ServiceOption {
	return func(s *Service) {
		if success != "" {
			s.successPath = success
		}
		if cancel != "" {
			s.cancelPath = cancel
		}
	}
}

// WithUpstreamTimeout bounds every provider call. Zero disables the bound.
func WithUpstreamTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d >= 0 {
			s.upstreamTimeout = d
		}
	}
}

// WithClock overrides the clock used for bookkeeping timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
