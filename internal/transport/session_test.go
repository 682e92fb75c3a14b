// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"lightshow/internal/command"
	"lightshow/internal/config"
	"lightshow/internal/log"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// fakeLink fails Open and Write with the queued errors, then succeeds.
type fakeLink struct {
	mu        sync.Mutex
	openErrs  []error
	writeErrs []error
	opens     int
	closes    int
	writes    chan command.Frame
}

func newFakeLink() *fakeLink {
	return &fakeLink{writes: make(chan command.Frame, 16)}
}

func (l *fakeLink) Open(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opens++
	if len(l.openErrs) > 0 {
		err := l.openErrs[0]
		l.openErrs = l.openErrs[1:]
		return err
	}
	return nil
}

func (l *fakeLink) Write(_ context.Context, f command.Frame) error {
	l.mu.Lock()
	var err error
	if len(l.writeErrs) > 0 {
		err, l.writeErrs = l.writeErrs[0], l.writeErrs[1:]
	}
	l.mu.Unlock()
	l.writes <- f
	return err
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	l.closes++
	l.mu.Unlock()
	return nil
}

func (l *fakeLink) counts() (opens, closes int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opens, l.closes
}

func device(queue int) config.DeviceConfig {
	cfg := config.DefaultDevice()
	cfg.QueueSize = queue
	cfg.ReconnectMin = time.Millisecond
	cfg.ReconnectMax = 4 * time.Millisecond
	return cfg
}

func receive(t *testing.T, l *fakeLink) command.Frame {
	t.Helper()
	select {
	case f := <-l.writes:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a write")
		return command.Frame{}
	}
}

func run(s *Session) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	return cancel, errc
}

func TestNewSessionErrors(t *testing.T) {
	if _, err := NewSession(device(0), newFakeLink()); !config.IsConfigError(err) {
		t.Errorf("expected ConfigError for queue_size 0, got %v", err)
	}
	if _, err := NewSession(device(1), nil); err == nil {
		t.Error("expected error for a nil link")
	}
}

func TestSessionDropsOldest(t *testing.T) {
	link := newFakeLink()
	s, err := NewSession(device(2), link)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		if !s.Dispatch(command.NewFrame(float64(i), 0, nil)) {
			t.Fatalf("dispatch %d refused", i)
		}
	}
	if s.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", s.Dropped())
	}

	cancel, errc := run(s)
	for _, want := range []float64{2, 3} {
		if f := receive(t, link); f.Base.Angle != want {
			t.Errorf("wrote base %v, want %v", f.Base.Angle, want)
		}
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
	if s.Sent() != 2 {
		t.Errorf("sent = %d, want 2", s.Sent())
	}
}

func TestSessionClampsToDevice(t *testing.T) {
	cfg := device(1)
	cfg.Base = config.ServoConfig{Min: 10, Max: 100, Offset: 5}
	s, err := NewSession(cfg, newFakeLink())
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		in, want float64
	}{
		{0, 10},
		{50, 55},
		{200, 100},
	}
	for _, tt := range tests {
		s.Dispatch(command.NewFrame(tt.in, -5, nil))
		f := <-s.queue
		if f.Base.Angle != tt.want || f.Top.Angle != 0 {
			t.Errorf("base %v -> %v top %v, want %v 0", tt.in, f.Base.Angle, f.Top.Angle, tt.want)
		}
	}
}

func TestSessionReconnects(t *testing.T) {
	link := newFakeLink()
	link.openErrs = []error{errors.New("refused"), errors.New("refused")}
	link.writeErrs = []error{errors.New("reset")}
	s, err := NewSession(device(4), link)
	if err != nil {
		t.Fatal(err)
	}
	cancel, errc := run(s)
	defer cancel()

	s.Dispatch(command.NewFrame(1, 0, nil))
	receive(t, link) // fails, drops the connection
	s.Dispatch(command.NewFrame(2, 0, nil))
	if f := receive(t, link); f.Base.Angle != 2 {
		t.Errorf("wrote base %v after reconnect, want 2", f.Base.Angle)
	}

	opens, closes := link.counts()
	if opens != 4 || closes != 1 {
		t.Errorf("opens %d closes %d, want 4 1", opens, closes)
	}
	if st := s.Status(); st.State != Connected {
		t.Errorf("state %v, want connected", st.State)
	}

	s.Close()
	if err := <-errc; err != nil {
		t.Errorf("Run after Close returned %v", err)
	}
	if s.Dispatch(command.NewFrame(3, 0, nil)) {
		t.Error("dispatch accepted after Close")
	}
	if st := s.Status(); st.State != Disconnected {
		t.Errorf("state %v after Close, want disconnected", st.State)
	}
}

func TestConnStateString(t *testing.T) {
	tests := []struct {
		s    ConnState
		want string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{Connected, "connected"},
		{Failed, "failed"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestNewLink(t *testing.T) {
	tests := []struct {
		transport string
		wantErr   bool
	}{
		{"ws", false},
		{"udp", false},
		{"log", false},
		{"serial", true},
	}
	for _, tt := range tests {
		cfg := config.DefaultDevice()
		cfg.Transport = tt.transport
		_, err := NewLink(cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewLink(%q) error = %v, wantErr %v", tt.transport, err, tt.wantErr)
		}
	}
}
