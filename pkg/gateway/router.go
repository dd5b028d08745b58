package gateway

import (
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/iec61850"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/logging"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/mapping"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/metrics"
)

// CommandRefused is the result code returned to the 104 library when a
// command cannot be routed or the target IED refuses it.
const CommandRefused = -1

// Router dispatches inbound 104 commands to the owning IED. Handle runs
// on the 104 server goroutine and must return promptly: an offline IED
// yields an immediate refusal, never a wait for reconnection.
type Router struct {
	tables *mapping.Tables
	reg    *Registry
	log    *logging.Logger
	m      *metrics.Metrics
}

// NewRouter creates the command router.
func NewRouter(tables *mapping.Tables, reg *Registry, log *logging.Logger, m *metrics.Metrics) *Router {
	return &Router{tables: tables, reg: reg, log: log, m: m}
}

// Handle routes one select or operate request. The result follows the
// native convention: 0 accepted, non-zero refused.
func (r *Router) Handle(ioa mapping.IOA, data int, selectCmd bool) int {
	uri, ok := r.tables.IOAToCommandURI[ioa]
	if !ok {
		r.log.Warn("command for unconfigured IOA", "ioa", uint32(ioa))
		r.m.Commands.WithLabelValues("unroutable").Inc()
		return CommandRefused
	}

	h := r.reg.Lookup(uri.IED)
	if h == nil {
		r.log.Error("command refused, IED offline",
			"ioa", uint32(ioa), "ied", uri.IED)
		r.m.Commands.WithLabelValues("offline").Inc()
		return CommandRefused
	}

	value := "false"
	if data == 1 {
		value = "true"
	}

	result := CommandRefused
	err := h.Do(func(c iec61850.Client) error {
		if selectCmd {
			result = c.Select(uri.Raw, value)
		} else {
			result = c.Operate(uri.Raw, value)
		}
		return nil
	})
	if err != nil {
		// The supervisor detached the client between lookup and lock.
		r.log.Error("command refused, IED went offline",
			"ioa", uint32(ioa), "ied", uri.IED)
		r.m.Commands.WithLabelValues("offline").Inc()
		return CommandRefused
	}

	action := "operate"
	if selectCmd {
		action = "select"
	}
	if result == 0 {
		r.log.Info("command dispatched",
			"action", action, "ioa", uint32(ioa), "ied", uri.IED, "value", value)
		r.m.Commands.WithLabelValues("accepted").Inc()
	} else {
		r.log.Warn("command refused by IED",
			"action", action, "ioa", uint32(ioa), "ied", uri.IED, "result", result)
		r.m.Commands.WithLabelValues("rejected").Inc()
	}
	return result
}
