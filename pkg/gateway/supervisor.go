package gateway

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/iec61850"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/logging"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/metrics"
)

// SupervisorState is the connection state of one IED supervisor.
type SupervisorState int32

const (
	StateDisconnected SupervisorState = iota
	StateConnecting
	StateConnected
	StateFaulted
	StateTerminated
)

func (s SupervisorState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateFaulted:
		return "FAULTED"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// SupervisorConfig carries the per-supervisor timing knobs.
type SupervisorConfig struct {
	PollingInterval         time.Duration
	ReconnectDelay          time.Duration
	ConnectionCheckInterval time.Duration
}

// Supervisor is the long-running task owning one IED connection: connect,
// register, poll, probe liveness, fault, back off, reconnect. It is the
// only writer of its Handle and never touches the 104 side directly; all
// outcomes travel as events.
type Supervisor struct {
	ied     string
	uris    []string
	factory iec61850.ClientFactory
	reg     *Registry
	queue   *Queue
	cfg     SupervisorConfig
	log     *logging.Logger
	m       *metrics.Metrics

	// heartbeatURI substitutes the liveness probe when the native client
	// exposes no connection state. Empty disables the substitute.
	heartbeatURI string

	handle *Handle
	state  atomic.Int32
}

// NewSupervisor creates a supervisor for one IED and its monitoring URIs.
func NewSupervisor(ied string, uris []string, heartbeatURI string, factory iec61850.ClientFactory,
	reg *Registry, queue *Queue, cfg SupervisorConfig, log *logging.Logger, m *metrics.Metrics) *Supervisor {
	return &Supervisor{
		ied:          ied,
		uris:         uris,
		factory:      factory,
		reg:          reg,
		queue:        queue,
		cfg:          cfg,
		log:          log.WithField("ied", ied),
		m:            m,
		heartbeatURI: heartbeatURI,
		handle:       &Handle{},
	}
}

// State returns the current supervisor state. Safe from any goroutine.
func (s *Supervisor) State() SupervisorState {
	return SupervisorState(s.state.Load())
}

// Handle returns the supervisor's client handle. The handle itself
// serializes access; the pointer is stable for the supervisor's lifetime.
func (s *Supervisor) Handle() *Handle {
	return s.handle
}

func (s *Supervisor) setState(st SupervisorState) {
	s.state.Store(int32(st))
	s.m.SupervisorState.WithLabelValues(s.ied).Set(float64(st))
}

// Run drives the state machine until the context is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	s.log.Info("IED supervisor started", "uris", len(s.uris))
	s.setState(StateDisconnected)

	for ctx.Err() == nil {
		s.setState(StateConnecting)
		if err := s.connect(ctx); err != nil {
			s.fault(ctx, err)
			if !s.backoff(ctx) {
				break
			}
			s.setState(StateDisconnected)
			continue
		}

		s.setState(StateConnected)
		s.reg.Publish(s.ied, s.handle)
		s.log.Info("connection established, entering main loop")

		err := s.serve(ctx)
		if err == nil {
			// Shutdown while connected: release the handle quietly.
			s.reg.Drop(s.ied)
			s.handle.detach()
			break
		}

		s.fault(ctx, err)
		if !s.backoff(ctx) {
			break
		}
		s.setState(StateDisconnected)
	}

	s.setState(StateTerminated)
	s.log.Info("IED supervisor stopped")
}

// connect creates a fresh client, establishes the association and
// registers every monitoring URI, finishing with an initial forced read.
func (s *Supervisor) connect(ctx context.Context) error {
	host, portStr, err := net.SplitHostPort(s.ied)
	if err != nil {
		return fmt.Errorf("invalid IED identity %q: %w", s.ied, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid IED port %q: %w", portStr, err)
	}

	client := s.factory(iec61850.Callbacks{
		OnReport: func(key string, value iec61850.Value) {
			s.log.Debug("data received via report", "key", key)
			s.submitData(key, SourceReport, value)
		},
		OnPoll: func(key string, value iec61850.Value) {
			s.log.Debug("data received via polling", "key", key)
			s.submitData(key, SourcePoll, value)
		},
	})
	s.handle.attach(client)

	s.log.Info("attempting to connect")
	err = s.handle.Do(func(c iec61850.Client) error {
		if err := c.Connect(host, port); err != nil {
			return fmt.Errorf("connect failed: %w", err)
		}
		for _, uri := range s.uris {
			if err := c.RegisterReadValue(uri); err != nil {
				return fmt.Errorf("failed to register %s: %w", uri, err)
			}
		}
		// Initial forced read so the 104 side starts from live values.
		if err := c.Poll(); err != nil {
			return fmt.Errorf("initial poll failed: %w", err)
		}
		return nil
	})
	if err != nil {
		s.handle.detach()
		return err
	}
	return nil
}

// serve is the connected loop: fallback polling plus the periodic
// liveness probe. Returns nil only on shutdown.
func (s *Supervisor) serve(ctx context.Context) error {
	poll := time.NewTicker(s.cfg.PollingInterval)
	defer poll.Stop()
	check := time.NewTicker(s.cfg.ConnectionCheckInterval)
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-poll.C:
			if err := s.handle.Do(func(c iec61850.Client) error { return c.Poll() }); err != nil {
				return fmt.Errorf("poll cycle failed: %w", err)
			}

		case <-check.C:
			if err := s.probeLiveness(); err != nil {
				return err
			}
		}
	}
}

// probeLiveness queries the native connection state; only the CONNECTED
// sentinel counts as live. When the library exposes no state, a heartbeat
// read of a well-known object substitutes.
func (s *Supervisor) probeLiveness() error {
	return s.handle.Do(func(c iec61850.Client) error {
		switch st := c.State(); st {
		case iec61850.StateConnected:
			return nil
		case iec61850.StateUnknown:
			if s.heartbeatURI == "" {
				return nil
			}
			if _, err := c.Read(s.heartbeatURI); err != nil {
				return fmt.Errorf("heartbeat read failed: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("connection lost (state %s)", st)
		}
	})
}

// fault enters FAULTED: drop the handle from the registry, close the
// client and queue the invalidation event. The event is submitted after
// any data updates already enqueued by this supervisor, so the 104 master
// never keeps a stale value past the fault.
func (s *Supervisor) fault(ctx context.Context, err error) {
	if ctx.Err() != nil {
		s.reg.Drop(s.ied)
		s.handle.detach()
		return
	}

	s.setState(StateFaulted)
	s.log.Error("supervisor fault", "error", err.Error(),
		"reconnect_delay", s.cfg.ReconnectDelay.String())

	s.reg.Drop(s.ied)
	s.handle.detach()
	s.queue.Submit(Event{Kind: EventInvalidate, IED: s.ied})
}

// backoff waits out the reconnect delay; a shutdown interrupts it.
// Returns false when the supervisor should terminate.
func (s *Supervisor) backoff(ctx context.Context) bool {
	timer := time.NewTimer(s.cfg.ReconnectDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Supervisor) submitData(key string, src Source, value iec61850.Value) {
	s.queue.Submit(Event{
		Kind:   EventData,
		IED:    s.ied,
		Key:    key,
		Source: src,
		Value:  value,
	})
}
