package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/distio/controller"
	"github.com/dmitrymomot/distio/internal/ipc"
	"github.com/dmitrymomot/distio/internal/obslog"
	"github.com/dmitrymomot/distio/wire"
)

// defaultReconnectAttempts is the number of times a Session redials the
// proxy after its connection drops before giving up on every handle it
// hosts.
const defaultReconnectAttempts = 3

// sessionTokenHeader mirrors proxy.sessionTokenHeader: the header a session
// resumption token issued on a prior successful handshake travels in, so a
// reconnect can skip re-presenting basic credentials.
const sessionTokenHeader = "X-Distio-Session-Token"

// Session owns one websocket connection to a proxy.Server and multiplexes
// any number of remote workers spawned on it.
type Session struct {
	url    string
	header http.Header
	dialer *websocket.Dialer

	dispatcher *controller.Dispatcher
	registry   *controller.Registry

	reconnectAttempts int
	log               *slog.Logger

	mu      sync.Mutex
	conn    ipc.Conn
	closed  bool
	handles map[uint64]*Handle

	pendingInit map[uint64]*controller.Future[InitAck]
	initSeq     uint64
}

// SessionOption configures a Session built with Dial.
type SessionOption func(*Session)

// WithReconnectAttempts overrides the default of 3 redial attempts after a
// connection drop.
func WithReconnectAttempts(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.reconnectAttempts = n
		}
	}
}

// WithSessionLogger attaches a logger. Defaults to a discard logger.
func WithSessionLogger(log *slog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithTLSConfig overrides the websocket dialer's TLS configuration.
func WithTLSConfig(cfg *tls.Config) SessionOption {
	return func(s *Session) { s.dialer.TLSClientConfig = cfg }
}

// Dial establishes a websocket connection to a proxy.Server at url
// (ws://host:port or wss://host:port), presenting authorization as the
// "Authorization" header on the upgrade request per spec.
func Dial(ctx context.Context, url, authorization string, dispatcher *controller.Dispatcher, registry *controller.Registry, opts ...SessionOption) (*Session, error) {
	header := http.Header{}
	if authorization != "" {
		header.Set("Authorization", authorization)
	}

	s := &Session{
		url:               url,
		header:            header,
		dialer:            &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		dispatcher:        dispatcher,
		registry:          registry,
		reconnectAttempts: defaultReconnectAttempts,
		log:               slog.New(slog.NewTextHandler(io.Discard, nil)),
		handles:           make(map[uint64]*Handle),
		pendingInit:       make(map[uint64]*controller.Future[InitAck]),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	go s.readLoop()
	return s, nil
}

func (s *Session) connect(ctx context.Context) error {
	wsConn, resp, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = ipc.NewSocketConn(wsConn)
	if resp != nil {
		if token := resp.Header.Get(sessionTokenHeader); token != "" {
			s.header.Set(sessionTokenHeader, token)
		}
	}
	s.mu.Unlock()
	return nil
}

// CreateWorkers asks the proxy to fork count children from path, returning
// one Handle per spawned worker. count<=0 performs no spawn.
func (s *Session) CreateWorkers(ctx context.Context, count int, path, aliasPrefix, group string, userArgs []string) ([]*Handle, error) {
	if count <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	seq := s.initSeq
	s.initSeq++
	future := controller.NewFuture[InitAck]()
	s.pendingInit[seq] = future
	conn := s.conn
	s.mu.Unlock()

	env := Envelope{
		Kind:     KindInit,
		WorkerID: seq,
		Init: &InitPayload{
			Count: count,
			Path:  path,
			Options: InitOptions{
				AliasPrefix: aliasPrefix,
				Group:       group,
				Args:        userArgs,
			},
		},
	}
	if err := conn.WriteFrame(env); err != nil {
		s.mu.Lock()
		delete(s.pendingInit, seq)
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	ack, err := future.Await(ctx)
	if err != nil {
		return nil, err
	}
	if ack.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrSpawnFailed, ack.Error)
	}

	out := make([]*Handle, 0, len(ack.WorkerIDs))
	for i, id := range ack.WorkerIDs {
		alias := fmt.Sprintf("%s-%d", aliasPrefix, i+1)
		h := newHandle(id, alias, group, path, s)
		s.mu.Lock()
		s.handles[id] = h
		s.mu.Unlock()
		if err := s.registry.Add(h, path); err != nil {
			h.setState(controller.HandleSpawnFailed)
			continue
		}
		h.setState(controller.HandleReady)
		out = append(out, h)
	}
	return out, nil
}

// deliver writes a RequestFrame addressed to workerID over the session's
// websocket. It implements the transport side of Handle.Deliver.
func (s *Session) deliver(workerID uint64, frame wire.RequestFrame) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	conn := s.conn
	s.mu.Unlock()

	return conn.WriteFrame(Envelope{Kind: KindMessage, WorkerID: workerID, Request: &frame})
}

func (s *Session) readLoop() {
	for {
		s.mu.Lock()
		conn := s.conn
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}

		var env Envelope
		err := conn.ReadFrame(&env)
		if err != nil {
			if !s.reconnect() {
				s.fail(ErrReconnectExhausted)
				return
			}
			continue
		}
		s.handleEnvelope(env)
	}
}

func (s *Session) reconnect() bool {
	for attempt := 1; attempt <= s.reconnectAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.connect(ctx)
		cancel()
		if err == nil {
			s.log.Info("remote session reconnected", slog.Int("attempt", attempt))
			return true
		}
		s.log.Warn("remote session reconnect failed", obslog.Error(err), slog.Int("attempt", attempt))
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return false
}

func (s *Session) handleEnvelope(env Envelope) {
	if env.InitAck != nil {
		s.mu.Lock()
		future, ok := s.pendingInit[env.WorkerID]
		if ok {
			delete(s.pendingInit, env.WorkerID)
		}
		s.mu.Unlock()
		if ok {
			future.Resolve(*env.InitAck)
		}
		return
	}

	switch env.Kind {
	case KindMessage:
		if env.Response != nil {
			s.completeResponse(env.WorkerID, *env.Response)
		} else if env.Exception != nil {
			s.reportException(env.WorkerID, *env.Exception)
		}
	case KindStderr:
		if h := s.handle(env.WorkerID); h != nil && h.onStderr != nil {
			h.onStderr(env.Data)
		}
	case KindSlaveExited, KindSlaveClosed:
		if h := s.handle(env.WorkerID); h != nil {
			h.teardown()
		}
	case KindRemoteKilled:
		if h := s.handle(env.WorkerID); h != nil {
			h.teardown()
		}
	case KindDisconnect:
		s.fail(ErrSessionClosed)
	}
}

func (s *Session) handle(workerID uint64) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[workerID]
}

func (s *Session) completeResponse(workerID uint64, rf wire.ResponseFrame) {
	secretID, secretNumber := s.dispatcher.Secret()
	if !rf.Verify(secretID, secretNumber) {
		return
	}
	h := s.handle(workerID)
	if h != nil {
		h.received.Add(1)
	}
	resp := wire.Response{
		RID:          rf.Request.RID,
		FromWorkerID: workerID,
		SentAt:       time.UnixMilli(rf.Sent),
		ReceivedAt:   time.Now(),
		Value:        rf.Data,
		Err:          rf.Err,
		Command:      rf.Request.Command,
	}
	s.dispatcher.Complete(resp)
}

func (s *Session) reportException(workerID uint64, ef wire.ExceptionFrame) {
	if h := s.handle(workerID); h != nil && h.onUncaughtException != nil {
		h.onUncaughtException(ef.Err)
	}
}

// fail tears every hosted handle down with err, marking pending requests
// Disconnected, and closes the session.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	handles := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	pending := s.pendingInit
	s.pendingInit = make(map[uint64]*controller.Future[InitAck])
	conn := s.conn
	s.mu.Unlock()

	for _, future := range pending {
		future.Reject(err)
	}
	for _, h := range handles {
		h.teardown()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// Close disconnects the session and every handle it hosts.
func (s *Session) Close() error {
	s.fail(ErrSessionClosed)
	return nil
}
