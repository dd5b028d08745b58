// Package gateway contains the engine bridging IEC 61850 IEDs to an
// IEC 60870-5-104 master: per-IED connection supervision, the
// report-to-IOA translation pipeline and the command router.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/config"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/iec104"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/iec61850"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/logging"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/mapping"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/metrics"
)

// ServerPort is the 104 server surface the gateway drives. Satisfied by
// *iec104.Adapter.
type ServerPort interface {
	PointSink
	Register(ioa mapping.IOA, typ mapping.PointType, cb iec104.CommandCallback) error
	Start()
	Stop() error
}

// Gateway wires the routing tables, the 104 server adapter, the
// translation worker and one supervisor per IED into a running engine.
type Gateway struct {
	cfg    *config.Config
	tables *mapping.Tables
	server ServerPort
	log    *logging.Logger
	m      *metrics.Metrics

	registry    *Registry
	queue       *Queue
	translator  *Translator
	router      *Router
	supervisors []*Supervisor
}

// New assembles a gateway from its collaborators. factory produces the
// native MMS clients; tests substitute fakes.
func New(cfg *config.Config, tables *mapping.Tables, server ServerPort,
	factory iec61850.ClientFactory, log *logging.Logger, m *metrics.Metrics) *Gateway {
	g := &Gateway{
		cfg:      cfg,
		tables:   tables,
		server:   server,
		log:      log,
		m:        m,
		registry: NewRegistry(),
		queue:    NewQueue(cfg.Gateway.QueueCapacity, log, m),
	}

	g.translator = NewTranslator(tables, server, g.queue, log, m)
	g.router = NewRouter(tables, g.registry, log, m)

	supCfg := SupervisorConfig{
		PollingInterval:         cfg.Gateway.PollingInterval,
		ReconnectDelay:          cfg.Gateway.ReconnectDelay,
		ConnectionCheckInterval: cfg.Gateway.ConnectionCheckInterval,
	}
	for ied, uris := range tables.IEDDataGroups {
		g.supervisors = append(g.supervisors, NewSupervisor(
			ied, uris, heartbeatURI(ied, uris), factory,
			g.registry, g.queue, supCfg, log, m))
	}

	return g
}

// Run starts the engine and blocks until the context is cancelled, then
// shuts down: supervisors and the translation worker first, the 104
// server last. Tasks still running past the shutdown deadline are
// abandoned.
func (g *Gateway) Run(ctx context.Context) error {
	// Every configured address is announced to the 104 server before any
	// supervisor starts, so a report can never race its own registration.
	if err := g.registerPoints(); err != nil {
		return err
	}

	g.server.Start()

	runCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		g.translator.Run(runCtx)
	}()

	for _, sup := range g.supervisors {
		sup := sup
		wg.Add(1)
		go func() {
			defer wg.Done()
			sup.Run(runCtx)
		}()
	}
	g.log.Info("gateway started",
		"ieds", len(g.supervisors), "points", len(g.tables.Registrations))

	<-ctx.Done()
	g.log.Info("shutting down")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(g.cfg.Gateway.ShutdownTimeout):
		// Native poll and read calls are not cancellable from outside;
		// past the deadline the remaining tasks are abandoned.
		g.log.Warn("shutdown deadline exceeded, abandoning remaining tasks")
	}

	if err := g.server.Stop(); err != nil {
		g.log.Error("104 server stop failed", "error", err.Error())
	}
	g.log.Info("gateway stopped")
	return nil
}

// Router exposes the command router, mainly for the 104 registration
// wiring and tests.
func (g *Gateway) Router() *Router {
	return g.router
}

// registerPoints replays the configured addresses against the 104 server
// in the order of Tables.Registrations. A colliding address is skipped
// with an error log; the first registration wins.
func (g *Gateway) registerPoints() error {
	for _, reg := range g.tables.Registrations {
		var cb iec104.CommandCallback
		if reg.Type.IsCommand() {
			cb = g.router.Handle
		}
		if err := g.server.Register(reg.IOA, reg.Type, cb); err != nil {
			g.log.Error("skipping colliding IOA registration",
				"ioa", uint32(reg.IOA), "type", reg.Type.String(), "error", err.Error())
		}
	}
	return nil
}

// heartbeatURI derives the fallback liveness probe object for an IED from
// its first monitoring URI: <IED>/LLN0.Health.stVal on the same device.
func heartbeatURI(ied string, uris []string) string {
	for _, raw := range uris {
		uri, err := mapping.ParseConfigLine(raw)
		if err != nil {
			continue
		}
		return "iec61850://" + ied + "/" + uri.IEDName + "/LLN0.Health.stVal"
	}
	return ""
}
