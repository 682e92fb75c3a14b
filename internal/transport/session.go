// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"lightshow/internal/command"
	"lightshow/internal/config"
)

// ConnState is the lifecycle of a device connection.
type ConnState uint8

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Failed
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "disconnected"
	}
}

// Status is the connection state with the reason for the last failure.
type Status struct {
	State  ConnState `json:"-"`
	Name   string    `json:"state"`
	Reason string    `json:"reason,omitempty"`
	Since  time.Time `json:"since"`
}

var errSessionClosed = errors.New("session closed")

// Session owns the connection to one fixture. Frames handed to Dispatch are
// queued and written by Run; when the queue is full the oldest frame is
// dropped.
type Session struct {
	cfg   config.DeviceConfig
	link  Link
	queue chan command.Frame

	mu     sync.Mutex
	status Status

	sent    atomic.Uint64
	dropped atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

// NewSession prepares a session for cfg over link. Call Run to connect.
func NewSession(cfg config.DeviceConfig, link Link) (*Session, error) {
	if link == nil {
		return nil, fmt.Errorf("session %s: link cannot be nil", cfg.Name)
	}
	if cfg.QueueSize <= 0 {
		return nil, config.Errorf("devices."+cfg.Name+".queue_size", "%d must be positive", cfg.QueueSize)
	}
	s := &Session{
		cfg:   cfg,
		link:  link,
		queue: make(chan command.Frame, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	s.setStatus(Disconnected, "")
	return s, nil
}

// Name is the device name.
func (s *Session) Name() string { return s.cfg.Name }

// Dispatch clamps f to the device's servo ranges and queues it. It never
// blocks; it returns false only after Close.
func (s *Session) Dispatch(f command.Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	f = f.Clamp(s.cfg.Base, s.cfg.Top)
	for {
		select {
		case s.queue <- f:
			return true
		default:
		}
		select {
		case <-s.queue:
			s.dropped.Add(1)
		default:
		}
	}
}

// Run connects and writes queued frames until ctx is cancelled or Close is
// called, reconnecting with exponential backoff.
func (s *Session) Run(ctx context.Context) error {
	delay := s.cfg.ReconnectMin
	for {
		s.setStatus(Connecting, "")
		if err := s.link.Open(ctx); err != nil {
			s.setStatus(Failed, err.Error())
			logger.Warnf("%s: connect failed, retrying in %v: %v", s.cfg.Name, delay, err)
			if !s.wait(ctx, delay) {
				return s.stop(ctx)
			}
			delay = min(delay*2, s.cfg.ReconnectMax)
			continue
		}
		delay = s.cfg.ReconnectMin
		s.setStatus(Connected, "")
		logger.Infof("%s: connected", s.cfg.Name)

		err := s.pump(ctx)
		if cerr := s.link.Close(); cerr != nil {
			logger.Debugf("%s: close: %v", s.cfg.Name, cerr)
		}
		if ctx.Err() != nil || errors.Is(err, errSessionClosed) {
			return s.stop(ctx)
		}
		s.setStatus(Disconnected, err.Error())
		logger.Warnf("%s: connection lost: %v", s.cfg.Name, err)
	}
}

func (s *Session) pump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return errSessionClosed
		case f := <-s.queue:
			if err := s.link.Write(ctx, f); err != nil {
				return err
			}
			s.sent.Add(1)
		}
	}
}

func (s *Session) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	}
}

func (s *Session) stop(ctx context.Context) error {
	s.setStatus(Disconnected, "")
	return ctx.Err()
}

func (s *Session) setStatus(state ConnState, reason string) {
	s.mu.Lock()
	s.status = Status{State: state, Name: state.String(), Reason: reason, Since: time.Now()}
	s.mu.Unlock()
}

// Status returns the current connection state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Sent counts frames written to the link.
func (s *Session) Sent() uint64 { return s.sent.Load() }

// Dropped counts frames evicted from a full queue.
func (s *Session) Dropped() uint64 { return s.dropped.Load() }

// Close stops Run. Frames still queued are discarded.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

var _ interface{ Close() error } = (*Session)(nil)
