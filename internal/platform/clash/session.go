package clash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/easton36/clashgg-sniper/internal/domain"
)

const (
	// maxForcedCloses is the number of consecutive forced disconnects after
	// which the session gives up. Repeated drops mean the credentials were
	// invalidated server-side and will not self-heal; better to stop and
	// alert than to keep failing auth silently.
	maxForcedCloses = 5

	// refreshBackoff is the pause before retrying a failed credential
	// refresh.
	refreshBackoff = 5 * time.Second
)

// streamConn abstracts a live stream connection so tests can substitute one.
type streamConn interface {
	readEvent() (domain.StreamEvent, error)
	close()
}

// SessionConfig holds the parameters the session manager needs to keep the
// stream authenticated.
type SessionConfig struct {
	WSURL        string
	RefreshToken string
	// IPAllowlisted skips the anti-bot solve during refresh.
	IPAllowlisted bool
}

// Session owns the single stream connection. It authenticates, detects forced
// disconnects, refreshes credentials (single-flight), and rebuilds the
// connection wholesale, delivering decoded events to consumers through
// Events(). It knows nothing about marketplace semantics.
type Session struct {
	cfg    SessionConfig
	api    *Client
	solver domain.ChallengeSolver
	logger *slog.Logger

	sf     singleflight.Group
	events chan domain.StreamEvent

	// dialFn is swapped out in tests.
	dialFn func(ctx context.Context, wsURL, accessToken, cfClearance string) (streamConn, error)

	mu         sync.Mutex
	conn       streamConn
	gen        uint64 // bumped every time conn is replaced
	closeCount int
}

// NewSession creates a session manager using the given REST client for token
// exchange and solver for anti-bot clearance. solver may be nil when the
// deployment is IP-allow-listed.
func NewSession(cfg SessionConfig, api *Client, solver domain.ChallengeSolver, logger *slog.Logger) *Session {
	return &Session{
		cfg:    cfg,
		api:    api,
		solver: solver,
		logger: logger.With(slog.String("component", "session")),
		events: make(chan domain.StreamEvent, 256),
		dialFn: func(ctx context.Context, wsURL, accessToken, cfClearance string) (streamConn, error) {
			return dial(ctx, wsURL, accessToken, cfClearance)
		},
	}
}

// Events returns the channel on which decoded stream events are delivered.
func (s *Session) Events() <-chan domain.StreamEvent {
	return s.events
}

// Connect performs the initial credential exchange and opens the stream.
func (s *Session) Connect(ctx context.Context) error {
	return s.RefreshCredentials(ctx)
}

// RefreshCredentials regenerates the access token (solving the anti-bot
// challenge first unless allow-listed) and rebuilds the stream connection.
// Concurrent invocations coalesce: if a refresh is already running, callers
// wait for it instead of starting another.
func (s *Session) RefreshCredentials(ctx context.Context) error {
	_, err, _ := s.sf.Do("refresh", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *Session) refresh(ctx context.Context) error {
	cfClearance := ""
	if !s.cfg.IPAllowlisted {
		if s.solver == nil {
			return fmt.Errorf("clash: refresh: %w", domain.ErrSolverFailed)
		}
		token, err := s.solver.Solve(ctx, s.cfg.RefreshToken)
		if err != nil {
			return fmt.Errorf("clash: refresh: solve challenge: %w", err)
		}
		cfClearance = token
	}

	accessToken, err := s.api.Authenticate(ctx, s.cfg.RefreshToken, cfClearance)
	if err != nil {
		return fmt.Errorf("clash: refresh: %w", err)
	}
	s.logger.Info("access token refreshed")

	conn, err := s.dialFn(ctx, s.cfg.WSURL, accessToken, cfClearance)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.conn
	s.conn = conn
	s.gen++
	s.mu.Unlock()
	if old != nil {
		old.close()
	}

	s.logger.Info("stream connected", slog.String("url", s.cfg.WSURL))
	return nil
}

// current returns the live connection and its generation.
func (s *Session) current() (streamConn, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn, s.gen
}

// noteForcedClose increments the consecutive-disconnect counter, but only if
// the failed connection is still the current one; a connection that was
// already replaced by a refresh is not a new failure.
func (s *Session) noteForcedClose(gen uint64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return s.closeCount, false
	}
	s.closeCount++
	return s.closeCount, true
}

// noteHealthy resets the disconnect counter once the server demonstrably
// accepted our credentials by delivering an event.
func (s *Session) noteHealthy(gen uint64) {
	s.mu.Lock()
	if gen == s.gen {
		s.closeCount = 0
	}
	s.mu.Unlock()
}

// Run reads the stream until ctx is cancelled, refreshing credentials and
// reconnecting on every forced close. It returns domain.ErrStreamDead after
// maxForcedCloses consecutive disconnects; the caller is expected to treat
// that as fatal.
func (s *Session) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, gen := s.current()
		if conn == nil {
			if err := s.reconnect(ctx); err != nil {
				return err
			}
			continue
		}

		ev, err := conn.readEvent()
		if err != nil {
			count, counted := s.noteForcedClose(gen)
			if !counted {
				continue // connection was already replaced by a refresh
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("stream closed",
				slog.Int("consecutive", count),
				slog.String("error", err.Error()),
			)
			if count >= maxForcedCloses {
				return fmt.Errorf("clash: %d consecutive disconnects: %w", count, domain.ErrStreamDead)
			}
			if err := s.reconnect(ctx); err != nil {
				return err
			}
			continue
		}

		s.noteHealthy(gen)

		select {
		case s.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// reconnect drives RefreshCredentials with backoff. Refresh failures count
// toward the same consecutive-failure limit as forced closes.
func (s *Session) reconnect(ctx context.Context) error {
	for {
		err := s.RefreshCredentials(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		s.mu.Lock()
		s.closeCount++
		count := s.closeCount
		s.mu.Unlock()

		s.logger.Error("credential refresh failed",
			slog.Int("consecutive", count),
			slog.String("error", err.Error()),
		)
		if count >= maxForcedCloses {
			return fmt.Errorf("clash: refresh kept failing: %w", domain.ErrStreamDead)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(refreshBackoff):
		}
	}
}

// Close tears down the stream connection.
func (s *Session) Close() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.gen++
	s.mu.Unlock()
	if conn != nil {
		conn.close()
	}
}
