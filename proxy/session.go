package proxy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/distio/internal/ipc"
	"github.com/dmitrymomot/distio/internal/obslog"
	"github.com/dmitrymomot/distio/remote"
	"github.com/dmitrymomot/distio/wire"
)

// maxStdoutLine bounds a single line read from a forked worker's stdout,
// mirroring internal/ipc's frame size bound for the local transport.
const maxStdoutLine = 16 * 1024 * 1024

// session is the proxy-side counterpart of remote.Session: one websocket
// connection hosting any number of forked worker processes for a single
// remote controller.
type session struct {
	id         uint64
	srv        *Server
	conn       ipc.Conn
	remoteAddr string
	log        *slog.Logger

	mu           sync.Mutex
	workers      map[uint64]*slaveProc
	nextWorkerID atomic.Uint64
	closed       bool
}

// slaveProc is one forked child process hosted by a session.
type slaveProc struct {
	id    uint64
	alias string

	cmd           *exec.Cmd
	conn          ipc.Conn // wraps stdin for writing request frames
	stdoutScanner *bufio.Scanner

	mu          sync.Mutex
	exitPending bool

	killTimer *time.Timer
}

func newSession(srv *Server, wsConn *websocket.Conn, remoteAddr string, id uint64) *session {
	return &session{
		id:         id,
		srv:        srv,
		conn:       ipc.NewSocketConn(wsConn),
		remoteAddr: remoteAddr,
		log:        srv.log,
		workers:    make(map[uint64]*slaveProc),
	}
}

func (s *session) run() {
	defer s.teardown()
	for {
		var env remote.Envelope
		if err := s.conn.ReadFrame(&env); err != nil {
			return
		}
		s.handleEnvelope(env)
	}
}

func (s *session) handleEnvelope(env remote.Envelope) {
	switch env.Kind {
	case remote.KindInit:
		s.handleInit(env)
	case remote.KindMessage:
		s.handleMessage(env)
	case remote.KindDisconnect:
		s.teardown()
	}
}

func (s *session) handleInit(env remote.Envelope) {
	if env.Init == nil || env.Init.Count <= 0 || env.Init.Path == "" {
		s.sendInitAck(env.WorkerID, nil, "malformed init request")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !s.srv.reserveSlaves(ctx, env.Init.Count) {
		s.sendInitAck(env.WorkerID, nil, ErrCapacityExceeded.Error())
		return
	}

	scriptPath, err := s.resolvePath(env.Init.Path)
	if err != nil {
		s.srv.releaseSlaves(env.Init.Count)
		s.sendInitAck(env.WorkerID, nil, err.Error())
		return
	}

	ids := make([]uint64, 0, env.Init.Count)
	spawned := 0
	for i := 1; i <= env.Init.Count; i++ {
		alias := fmt.Sprintf("%s-%d", env.Init.Options.AliasPrefix, i)
		proc, err := s.spawn(scriptPath, alias, env.Init.Options.Args)
		if err != nil {
			s.log.Warn("spawn failed", obslog.Error(err), obslog.Alias(alias))
			continue
		}
		spawned++
		s.mu.Lock()
		s.workers[proc.id] = proc
		s.mu.Unlock()
		ids = append(ids, proc.id)
		go s.readWorker(proc)
		go s.reapWorker(proc)
		if s.srv.killSlavesAfter > 0 {
			proc.killTimer = time.AfterFunc(s.srv.killSlavesAfter, func() { s.killWorkerByID(proc.id, "SIGTERM") })
		}
	}
	if spawned < env.Init.Count {
		s.srv.releaseSlaves(env.Init.Count - spawned)
	}

	if spawned == 0 {
		s.sendInitAck(env.WorkerID, nil, "no workers could be spawned")
		return
	}
	s.sendInitAck(env.WorkerID, ids, "")
}

func (s *session) sendInitAck(seq uint64, ids []uint64, errMsg string) {
	_ = s.conn.WriteFrame(remote.Envelope{
		Kind:     remote.KindInit,
		WorkerID: seq,
		InitAck:  &remote.InitAck{WorkerIDs: ids, Error: errMsg},
	})
}

// resolvePath joins the session's requested path against the server's
// script root, rejecting any attempt to escape it.
func (s *session) resolvePath(path string) (string, error) {
	full := filepath.Join(s.srv.root, path)
	rel, err := filepath.Rel(s.srv.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("proxy: path %q escapes script root", path)
	}
	return full, nil
}

func (s *session) nextID() uint64 {
	return s.nextWorkerID.Add(1)
}

func (s *session) spawn(scriptPath, alias string, userArgs []string) (*slaveProc, error) {
	id := s.nextID()
	argv := append([]string{}, userArgs...)
	argv = append(argv, fmt.Sprintf("--slave-id=%d", id), fmt.Sprintf("--slave-alias=%s", alias))

	cmd := exec.Command(scriptPath, argv...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = stderrForwarder{session: s, workerID: id}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	proc := &slaveProc{
		id:    id,
		alias: alias,
		cmd:   cmd,
		conn:  ipc.NewPipeConn(bytes.NewReader(nil), stdin, stdin),
	}
	proc.stdoutScanner = newStdoutScanner(stdout)
	return proc, nil
}

type stderrForwarder struct {
	session  *session
	workerID uint64
}

func (w stderrForwarder) Write(p []byte) (int, error) {
	cp := bytes.Clone(p)
	_ = w.session.conn.WriteFrame(remote.Envelope{Kind: remote.KindStderr, WorkerID: w.workerID, Data: cp})
	return len(p), nil
}

func newStdoutScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdoutLine)
	return scanner
}

func (s *session) readWorker(proc *slaveProc) {
	for proc.stdoutScanner.Scan() {
		line := proc.stdoutScanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var f wire.InboundFrame
		if err := json.Unmarshal(line, &f); err != nil {
			_ = s.conn.WriteFrame(remote.Envelope{Kind: remote.KindStdout, WorkerID: proc.id, Data: bytes.Clone(line)})
			continue
		}

		switch {
		case f.IsResponse():
			rf := f.AsResponseFrame()
			_ = s.conn.WriteFrame(remote.Envelope{Kind: remote.KindMessage, WorkerID: proc.id, Response: &rf})
			s.afterReply(proc)
		case f.IsException():
			ef := f.AsExceptionFrame()
			_ = s.conn.WriteFrame(remote.Envelope{Kind: remote.KindMessage, WorkerID: proc.id, Exception: &ef})
		default:
			_ = s.conn.WriteFrame(remote.Envelope{Kind: remote.KindStdout, WorkerID: proc.id, Data: bytes.Clone(line)})
		}
	}
}

// afterReply closes the worker down once it has answered the EXIT sentinel
// it was asked to run, mirroring LocalHandle's close-after-EXIT-reply
// behavior at the per-worker granularity.
func (s *session) afterReply(proc *slaveProc) {
	proc.mu.Lock()
	exitPending := proc.exitPending
	proc.mu.Unlock()
	if !exitPending {
		return
	}
	s.removeWorker(proc.id)
	_ = s.conn.WriteFrame(remote.Envelope{Kind: remote.KindSlaveClosed, WorkerID: proc.id})
}

func (s *session) reapWorker(proc *slaveProc) {
	_ = proc.cmd.Wait()
	if s.removeWorker(proc.id) {
		_ = s.conn.WriteFrame(remote.Envelope{Kind: remote.KindSlaveExited, WorkerID: proc.id})
	}
}

func (s *session) handleMessage(env remote.Envelope) {
	if env.Request == nil || !env.Request.Valid() {
		s.sendRemoteSlaveError(env.WorkerID, "missing or invalid request fields")
		return
	}

	proc := s.workerByID(env.WorkerID)
	if proc == nil {
		s.sendRemoteSlaveError(env.WorkerID, "unknown worker id")
		return
	}

	req := *env.Request
	req.Meta.CatchAll = nil // strip catchAll; it is a pure controller-side decision

	if sig, ok := wire.SignalFromRemoteKill(req.Command); ok {
		s.killWorkerByID(proc.id, sig)
		return
	}

	if req.Command == wire.CommandExit {
		proc.mu.Lock()
		proc.exitPending = true
		proc.mu.Unlock()
	}

	if err := proc.conn.WriteFrame(req); err != nil {
		s.sendRemoteSlaveError(env.WorkerID, "write failed: "+err.Error())
	}
}

func (s *session) sendRemoteSlaveError(workerID uint64, reason string) {
	_ = s.conn.WriteFrame(remote.Envelope{Kind: remote.KindMessage, WorkerID: workerID, Error: (&RemoteSlaveError{WorkerID: workerID, Reason: reason}).Error()})
}

func (s *session) workerByID(id uint64) *slaveProc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workers[id]
}

// removeWorker deletes id from the session's table and releases its
// capacity slot. Returns false if it was already removed.
func (s *session) removeWorker(id uint64) bool {
	s.mu.Lock()
	proc, ok := s.workers[id]
	if ok {
		delete(s.workers, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	if proc.killTimer != nil {
		proc.killTimer.Stop()
	}
	_ = proc.conn.Close()
	s.srv.releaseSlaves(1)
	return true
}

func (s *session) killWorkerByID(id uint64, sig string) {
	proc := s.workerByID(id)
	if proc == nil {
		return
	}
	if proc.cmd.Process != nil {
		_ = proc.cmd.Process.Signal(signalFromName(sig))
	}
	s.removeWorker(id)
	_ = s.conn.WriteFrame(remote.Envelope{Kind: remote.KindRemoteKilled, WorkerID: id, Signal: sig})
}

// signalFromName maps a wire signal name to its syscall value, defaulting
// to SIGKILL for names this platform doesn't recognize (SIGBREAK is
// Windows-only and has no POSIX equivalent).
func signalFromName(name string) syscall.Signal {
	switch strings.ToUpper(name) {
	case "SIGINT":
		return syscall.SIGINT
	case "SIGTERM":
		return syscall.SIGTERM
	case "SIGHUP":
		return syscall.SIGHUP
	case "SIGSTOP":
		return syscall.SIGSTOP
	default:
		return syscall.SIGKILL
	}
}

// teardown disconnects the session, killing every worker it still hosts.
func (s *session) teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	procs := make([]*slaveProc, 0, len(s.workers))
	for _, proc := range s.workers {
		procs = append(procs, proc)
	}
	s.mu.Unlock()

	for _, proc := range procs {
		if proc.cmd.Process != nil {
			_ = proc.cmd.Process.Kill()
		}
		s.removeWorker(proc.id)
	}
	_ = s.conn.Close()
	s.srv.dropSession(s.id)
}
