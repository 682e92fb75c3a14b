// SPDX-License-Identifier: MIT
//
// Package transport delivers animation frames to fixtures and pushes
// monitoring events to observers. Nothing here is called on the audio
// goroutine except Session.Dispatch, which never blocks.
package transport

import (
	"context"
	"fmt"

	"lightshow/internal/command"
	"lightshow/internal/config"
	"lightshow/internal/log"
	"lightshow/internal/transport/udp"
)

var logger = log.Named("transport")

// Link is one connection to a fixture. A Session calls its methods from a
// single goroutine.
type Link interface {
	// Open connects. It may be called again after Close.
	Open(ctx context.Context) error
	// Write delivers one frame.
	Write(ctx context.Context, f command.Frame) error
	Close() error
}

// NewLink builds the link declared by cfg.
func NewLink(cfg config.DeviceConfig) (Link, error) {
	switch cfg.Transport {
	case "ws":
		return NewWSLink(cfg.URL), nil
	case "udp":
		return udp.NewLink(cfg.Address, cfg.RefreshInterval), nil
	case "log":
		return NewLogLink(cfg.Name), nil
	default:
		return nil, config.Errorf("devices."+cfg.Name+".transport", "unknown transport %q", cfg.Transport)
	}
}

// LogLink writes frames to the log instead of a fixture.
type LogLink struct {
	name string
}

// NewLogLink returns a link for dry runs.
func NewLogLink(name string) *LogLink {
	return &LogLink{name: name}
}

func (l *LogLink) Open(context.Context) error {
	logger.Infof("%s: logging frames instead of sending them", l.name)
	return nil
}

// Write logs f at debug level.
func (l *LogLink) Write(_ context.Context, f command.Frame) error {
	logger.Debugf("%s: %v", l.name, f)
	return nil
}

func (l *LogLink) Close() error { return nil }

func (l *LogLink) String() string { return fmt.Sprintf("log(%s)", l.name) }

var _ Link = (*LogLink)(nil)
