package proxy

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/distio/internal/obslog"
	"github.com/dmitrymomot/distio/internal/sessionauth"
	"github.com/dmitrymomot/distio/pkg/clientip"
	"github.com/dmitrymomot/distio/pkg/ratelimiter"
)

// defaultShutdownGrace bounds how long Stop waits for the HTTP server to shut
// down. Stop tears down every session and its child processes first, so the
// grace is not a pause before that teardown.
const defaultShutdownGrace = 500 * time.Millisecond

// defaultSessionTokenTTL bounds how long a session resumption token issued
// after a successful handshake remains valid.
const defaultSessionTokenTTL = time.Hour

// sessionTokenHeader carries the resumption token a controller received
// after its first successful handshake, presented on later reconnects as an
// alternative to re-sending basic credentials.
const sessionTokenHeader = "X-Distio-Session-Token"

// admissionBucketKey is the single key every init request consumes tokens
// against; the proxy rate-limits total spawn throughput, not per-caller.
const admissionBucketKey = "global"

// Server accepts websocket connections from remote controllers and forks
// local worker processes on their behalf. Safe for concurrent use.
type Server struct {
	mu sync.RWMutex

	root                string
	maxConcurrentSlaves int
	killSlavesAfter     time.Duration
	shutdownGrace       time.Duration
	authorizedIPs       []*regexp.Regexp
	basicAuth           *BasicAuth
	sessionTokens       *sessionauth.Issuer
	log                 *slog.Logger

	upgrader websocket.Upgrader

	// liveSlaves is the true concurrent-process count, incremented on
	// spawn and decremented on teardown. maxConcurrentSlaves is enforced
	// against it directly: the token-bucket Store interface (ConsumeTokens/
	// Reset) has no primitive for returning unused tokens on process exit,
	// so it cannot model a release-on-completion semaphore by itself.
	liveSlaves atomic.Int64

	// admission rate-limits how fast init requests may consume spawn
	// capacity, independent of how long a slave then lives; a genuine
	// token-bucket concern layered on top of the hard liveSlaves cap.
	admission     *ratelimiter.Bucket
	admissionFeed *ratelimiter.MemoryStore
	admissionDone chan struct{}

	httpServer *http.Server
	listener   net.Listener
	running    bool

	sessionsMu  sync.Mutex
	sessions    map[uint64]*session
	nextSession atomic.Uint64

	sigCh   chan os.Signal
	sigDone chan struct{}
	sigOnce sync.Once
}

// New builds a Server from opts. WithScriptRoot is effectively required:
// New returns ErrBadScriptRoot if the configured root does not exist or is
// not a directory.
func New(opts ...Option) (*Server, error) {
	cfg := &config{
		root:          ".",
		shutdownGrace: defaultShutdownGrace,
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	root, err := filepath.Abs(cfg.root)
	if err != nil {
		return nil, fmt.Errorf("proxy: resolve script root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, ErrBadScriptRoot
	}

	authorizedIPs, err := cfg.compileAuthorizedIPs()
	if err != nil {
		return nil, err
	}

	tokenKey := cfg.sessionTokenKey
	if len(tokenKey) == 0 {
		tokenKey = make([]byte, 32)
		if _, err := rand.Read(tokenKey); err != nil {
			return nil, fmt.Errorf("proxy: generate session token key: %w", err)
		}
	}
	tokenTTL := cfg.sessionTokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultSessionTokenTTL
	}

	capacity := cfg.maxConcurrentSlaves
	if capacity <= 0 {
		capacity = 1 << 20 // effectively unlimited for the admission bucket
	}
	refillInterval := cfg.killSlavesAfter
	if refillInterval <= 0 {
		refillInterval = time.Minute
	}
	admissionFeed := ratelimiter.NewMemoryStore(ratelimiter.WithStoreLogger(cfg.log))
	admission, err := ratelimiter.NewBucket(admissionFeed, ratelimiter.Config{
		Capacity:       capacity,
		RefillRate:     capacity,
		RefillInterval: refillInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("proxy: build admission limiter: %w", err)
	}

	return &Server{
		root:                root,
		maxConcurrentSlaves: cfg.maxConcurrentSlaves,
		killSlavesAfter:     cfg.killSlavesAfter,
		shutdownGrace:       cfg.shutdownGrace,
		authorizedIPs:       authorizedIPs,
		basicAuth:           cfg.basicAuth,
		sessionTokens:       sessionauth.NewIssuer(tokenKey, tokenTTL),
		log:                 cfg.log,
		upgrader:            websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		admission:           admission,
		admissionFeed:       admissionFeed,
		sessions:            make(map[uint64]*session),
	}, nil
}

// Start binds addr and begins accepting connections in the background,
// returning once the listener is live. addr may end in ":0" to have the OS
// choose a port; the returned address reports which port was chosen.
func (s *Server) Start(ctx context.Context, addr string) (string, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return "", ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}

	s.listener = ln
	s.httpServer = &http.Server{Handler: http.HandlerFunc(s.serveHTTP)}
	s.running = true
	s.admissionDone = make(chan struct{})
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("proxy server stopped unexpectedly", obslog.Error(err))
		}
	}()

	go func() {
		defer close(s.admissionDone)
		if err := s.admissionFeed.Start(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("admission bucket cleanup stopped unexpectedly", obslog.Error(err))
		}
	}()

	s.log.InfoContext(ctx, "proxy listening", slog.String("addr", ln.Addr().String()))
	return ln.Addr().String(), nil
}

// Stop disconnects every active session and closes the listener, bounded by
// the server's configured shutdown grace.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	httpServer := s.httpServer
	grace := s.shutdownGrace
	s.mu.Unlock()

	s.sessionsMu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessionsMu.Unlock()
	for _, sess := range sessions {
		sess.teardown()
	}

	if err := s.admissionFeed.Stop(); err != nil {
		s.log.Warn("admission bucket cleanup did not stop cleanly", obslog.Error(err))
	}
	<-s.admissionDone

	shutdownCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// Healthcheck reports an error if the proxy's admission rate limiter is not
// operating normally (its cleanup goroutine configured but not running).
func (s *Server) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.admissionFeed.Healthcheck(ctx)
}

// BindSIGINT installs a two-step interrupt handler: the first SIGINT
// triggers a graceful Stop bounded by the server's shutdown grace; a second
// SIGINT before that completes exits the process immediately.
func (s *Server) BindSIGINT() {
	s.mu.Lock()
	if s.sigCh != nil {
		s.mu.Unlock()
		return
	}
	s.sigCh = make(chan os.Signal, 2)
	s.sigDone = make(chan struct{})
	s.mu.Unlock()

	signal.Notify(s.sigCh, os.Interrupt)

	go func() {
		first := true
		for {
			select {
			case <-s.sigDone:
				return
			case <-s.sigCh:
				if !first {
					os.Exit(1)
				}
				first = false
				s.log.Info("received interrupt, stopping gracefully")
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), s.shutdownGrace)
					defer cancel()
					if err := s.Stop(ctx); err != nil {
						s.log.Error("graceful stop failed", obslog.Error(err))
					}
				}()
			}
		}
	}()
}

// UnbindSIGINT removes the interrupt handler installed by BindSIGINT. Safe
// to call even if BindSIGINT was never called.
func (s *Server) UnbindSIGINT() {
	s.mu.Lock()
	ch := s.sigCh
	done := s.sigDone
	s.sigCh = nil
	s.sigDone = nil
	s.mu.Unlock()

	if ch == nil {
		return
	}
	signal.Stop(ch)
	s.sigOnce.Do(func() { close(done) })
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if err := s.authorize(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id := s.nextSession.Add(1)

	respHeader := http.Header{}
	if token, err := s.sessionTokens.Generate(fmt.Sprint(id)); err == nil {
		respHeader.Set(sessionTokenHeader, token)
	} else {
		s.log.Warn("failed to issue session token", obslog.Error(err))
	}

	conn, err := s.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		s.log.Warn("websocket upgrade failed", obslog.Error(err))
		return
	}

	sess := newSession(s, conn, clientip.GetIP(r), id)

	s.sessionsMu.Lock()
	s.sessions[id] = sess
	s.sessionsMu.Unlock()

	s.log.Info("session connected", slog.Uint64("session_id", id), obslog.RemoteAddr(sess.remoteAddr))
	go sess.run()
}

// reserveSlaves grants n worker slots if both the admission rate limiter
// and the hard maxConcurrentSlaves cap allow it; it reserves nothing and
// returns false on refusal.
func (s *Server) reserveSlaves(ctx context.Context, n int) bool {
	if s.maxConcurrentSlaves > 0 {
		for {
			current := s.liveSlaves.Load()
			if int(current)+n > s.maxConcurrentSlaves {
				return false
			}
			if s.liveSlaves.CompareAndSwap(current, current+int64(n)) {
				break
			}
		}
	} else {
		s.liveSlaves.Add(int64(n))
	}

	result, err := s.admission.AllowN(ctx, admissionBucketKey, n)
	if err != nil || !result.Allowed() {
		s.liveSlaves.Add(-int64(n))
		return false
	}
	return true
}

// releaseSlaves returns n slots to the live concurrency count once their
// processes have exited.
func (s *Server) releaseSlaves(n int) {
	s.liveSlaves.Add(-int64(n))
}

func (s *Server) dropSession(id uint64) {
	s.sessionsMu.Lock()
	delete(s.sessions, id)
	s.sessionsMu.Unlock()
}
