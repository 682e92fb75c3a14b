// SPDX-License-Identifier: MIT
//
// Package udp sends frames to fixtures as fixed-size binary datagrams.
// Datagrams get lost, so the link resends the latest full state on a timer.
package udp

import (
	"context"
	"errors"
	"sync"
	"time"

	"lightshow/internal/command"
	"lightshow/internal/log"
)

var logger = log.Named("udp")

var errNotOpen = errors.New("udp link is not open")

// Link implements a device link over UDP. Each Write sends one packet in the
// command.AppendBinary layout; between writes the last frame is repeated
// every refresh interval with its colour reduced to the colour it settles on,
// so a lost packet heals without replaying a fade or flicker.
type Link struct {
	address  string
	interval time.Duration

	mu     sync.Mutex
	sender *Sender
	seq    uint32
	last   command.Frame
	have   bool
	buf    []byte

	done chan struct{}
	wg   sync.WaitGroup
}

// NewLink targets address. A non-positive refresh disables the resend.
func NewLink(address string, refresh time.Duration) *Link {
	return &Link{
		address:  address,
		interval: refresh,
		buf:      make([]byte, 0, command.PacketSize),
	}
}

func (l *Link) Open(context.Context) error {
	s, err := NewSender(l.address)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.sender = s
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	if l.interval > 0 {
		l.wg.Add(1)
		go l.refresh(done)
	}
	logger.Infof("sending to %s (refresh %v)", l.address, l.interval)
	return nil
}

func (l *Link) refresh(done chan struct{}) {
	defer l.wg.Done()
	t := time.NewTicker(l.interval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			l.mu.Lock()
			if l.have {
				f := l.last
				if f.Color != nil {
					f.Color = f.Color.Final()
				}
				if err := l.send(f); err != nil {
					logger.Debugf("refresh to %s failed: %v", l.address, err)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Write sends f immediately and remembers it for the refresh.
func (l *Link) Write(_ context.Context, f command.Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last, l.have = f, true
	return l.send(f)
}

// send requires l.mu.
func (l *Link) send(f command.Frame) error {
	if l.sender == nil {
		return errNotOpen
	}
	l.seq++
	l.buf = command.AppendBinary(l.buf[:0], l.seq, time.Now(), f)
	return l.sender.Send(l.buf)
}

// Seq is the sequence number of the last packet sent.
func (l *Link) Seq() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

func (l *Link) Close() error {
	l.mu.Lock()
	s := l.sender
	l.sender = nil
	if l.done != nil {
		close(l.done)
		l.done = nil
	}
	l.mu.Unlock()
	l.wg.Wait()
	if s == nil {
		return nil
	}
	return s.Close()
}

var _ interface{ Close() error } = (*Link)(nil)
