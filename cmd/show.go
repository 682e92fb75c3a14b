// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"sync"
	"time"

	"lightshow/internal/analysis"
	"lightshow/internal/config"
	"lightshow/internal/controller"
	"lightshow/internal/detect"
	"lightshow/internal/log"
	"lightshow/internal/packet"
	"lightshow/internal/pipeline"
	"lightshow/internal/transport"
)

var logger = log.Named("show")

// statusInterval is how often controller snapshots go to the monitor.
const statusInterval = time.Second

// fixture is one device with its controller and connection.
type fixture struct {
	name       string
	session    *transport.Session
	controller *controller.Controller
}

// DeviceStatus is what the monitor shows for one fixture.
type DeviceStatus struct {
	Controller controller.Snapshot `json:"controller"`
	Link       transport.Status    `json:"link"`
	Sent       uint64              `json:"sent"`
	Dropped    uint64              `json:"dropped"`
}

// Show wires the analysis chain to every configured fixture: one spectrum
// processor and pipeline, and per device a controller feeding a session.
type Show struct {
	cfg      *config.Config
	spectrum *analysis.SpectrumProcessor
	pipeline *pipeline.Pipeline
	fixtures []fixture
	monitor  *transport.Monitor

	wg sync.WaitGroup
}

// NewShow builds everything from cfg. Nothing connects until Start.
func NewShow(cfg *config.Config, start time.Time) (*Show, error) {
	spectrum, err := analysis.NewSpectrumProcessor(cfg.Analysis, cfg.Audio.ChunkSize, cfg.Audio.SampleRate)
	if err != nil {
		return nil, err
	}
	rate, err := detect.NewFrameRate(cfg.Audio.SampleRate, cfg.Audio.ChunkSize)
	if err != nil {
		return nil, err
	}

	s := &Show{cfg: cfg, spectrum: spectrum}
	var handlers []packet.Handler
	for _, dev := range cfg.Devices {
		link, err := transport.NewLink(dev)
		if err != nil {
			return nil, err
		}
		session, err := transport.NewSession(dev, link)
		if err != nil {
			return nil, err
		}
		ctl, err := controller.New(cfg.Controller, session)
		if err != nil {
			return nil, err
		}
		s.fixtures = append(s.fixtures, fixture{name: dev.Name, session: session, controller: ctl})
		handlers = append(handlers, ctl)
	}
	if cfg.Monitor.Enabled {
		s.monitor = transport.NewMonitor(cfg.Monitor.Address)
		handlers = append(handlers, s.monitor)
	}

	s.pipeline, err = pipeline.New(cfg.Detection, spectrum.Shape(), rate, start, handlers...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Spectrum is the processor frames must pass through before Process.
func (s *Show) Spectrum() *analysis.SpectrumProcessor { return s.spectrum }

// Pipeline exposes session control (new track, pause, resume).
func (s *Show) Pipeline() *pipeline.Pipeline { return s.pipeline }

// Process runs one analysed frame through detection and every controller.
func (s *Show) Process(frame analysis.AudioFrame) { s.pipeline.Process(frame) }

// Start connects the fixtures and the monitor in the background.
func (s *Show) Start(ctx context.Context) error {
	for _, f := range s.fixtures {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := f.session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("%s: session stopped: %v", f.name, err)
			}
		}()
	}
	if s.monitor == nil {
		return nil
	}
	if err := s.monitor.Start(ctx); err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reportStatus(ctx)
	}()
	return nil
}

func (s *Show) reportStatus(ctx context.Context) {
	t := time.NewTicker(statusInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.monitor.Publish(transport.Event{Type: "status", Time: now, Data: map[string]any{
				"devices":  s.Status(),
				"pipeline": s.pipeline.Stats(),
			}})
		}
	}
}

// Status returns every fixture's controller snapshot and link state.
func (s *Show) Status() map[string]DeviceStatus {
	out := make(map[string]DeviceStatus, len(s.fixtures))
	for _, f := range s.fixtures {
		out[f.name] = DeviceStatus{
			Controller: f.controller.Snapshot(),
			Link:       f.session.Status(),
			Sent:       f.session.Sent(),
			Dropped:    f.session.Dropped(),
		}
	}
	return out
}

// Close stops every session and waits for the background goroutines. The
// context given to Start must be cancelled first or concurrently.
func (s *Show) Close() error {
	for _, f := range s.fixtures {
		f.session.Close()
	}
	if s.monitor != nil {
		s.monitor.Close()
	}
	s.wg.Wait()

	st := s.pipeline.Stats()
	logger.Infof("processed %d frames: %d beats, %d breaks, %d drops, %d new tracks",
		st.Frames, st.Beats, st.Breaks, st.Drops, st.NewMusic)
	return nil
}
