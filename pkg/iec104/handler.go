package iec104

import (
	"fmt"
	"time"

	"github.com/thinkgos/go-iecp5/asdu"

	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/logging"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/mapping"
)

// serverHandler receives inbound ASDUs on the server goroutine and maps
// them onto the adapter's point table. Command dispatch must stay
// synchronous: the master expects a confirmation within protocol timing.
type serverHandler struct {
	adapter *Adapter
}

// InterrogationHandler replays the point table for a general
// interrogation: activation confirm, every monitoring object with the
// interrogation cause, activation terminate.
func (h *serverHandler) InterrogationHandler(c asdu.Connect, pack *asdu.ASDU, qoi asdu.QualifierOfInterrogation) error {
	if qoi != asdu.QOIStation {
		pack.Identifier.Coa.IsNegative = true
		return pack.SendReplyMirror(c, asdu.ActivationCon)
	}

	if err := pack.SendReplyMirror(c, asdu.ActivationCon); err != nil {
		return err
	}

	a := h.adapter
	for _, p := range a.snapshot() {
		if err := a.send(c, p.typ, p.ioa, p.value, p.quality, asdu.InterrogatedByStation); err != nil {
			a.log.Warn("interrogation reply failed",
				"ioa", uint32(p.ioa), "error", err.Error())
		}
	}

	return pack.SendReplyMirror(c, asdu.ActivationTerm)
}

// CounterInterrogationHandler rejects counter interrogation; the gateway
// carries no integrated totals.
func (h *serverHandler) CounterInterrogationHandler(c asdu.Connect, pack *asdu.ASDU, qcc asdu.QualifierCountCall) error {
	pack.Identifier.Coa.IsNegative = true
	return pack.SendReplyMirror(c, asdu.ActivationCon)
}

// ReadHandler serves a single-object read from the in-memory table.
func (h *serverHandler) ReadHandler(c asdu.Connect, pack *asdu.ASDU, addr asdu.InfoObjAddr) error {
	a := h.adapter
	ioa := mapping.IOA(addr)

	a.mu.Lock()
	p, ok := a.points[ioa]
	if !ok || p.typ.IsCommand() {
		a.mu.Unlock()
		return pack.SendReplyMirror(c, asdu.UnknownIOA)
	}
	typ, value, quality := p.typ, p.value, p.quality
	a.mu.Unlock()

	return a.send(c, typ, ioa, value, quality, asdu.Request)
}

// ClockSyncHandler acknowledges clock synchronization without adjusting
// anything; the gateway timestamps nothing itself.
func (h *serverHandler) ClockSyncHandler(c asdu.Connect, pack *asdu.ASDU, t time.Time) error {
	h.adapter.log.Debug("clock synchronization received", "master_time", t.Format(time.RFC3339))
	return pack.SendReplyMirror(c, asdu.ActivationCon)
}

// ResetProcessHandler rejects process reset.
func (h *serverHandler) ResetProcessHandler(c asdu.Connect, pack *asdu.ASDU, qrp asdu.QualifierOfResetProcessCmd) error {
	pack.Identifier.Coa.IsNegative = true
	return pack.SendReplyMirror(c, asdu.ActivationCon)
}

// DelayAcquisitionHandler acknowledges delay acquisition.
func (h *serverHandler) DelayAcquisitionHandler(c asdu.Connect, pack *asdu.ASDU, msec uint16) error {
	return pack.SendReplyMirror(c, asdu.ActivationCon)
}

// ASDUHandler dispatches single and double commands to the registered
// callback. Anything else is answered with an unknown-type mirror.
func (h *serverHandler) ASDUHandler(c asdu.Connect, pack *asdu.ASDU) error {
	switch pack.Identifier.Type {
	case asdu.C_SC_NA_1:
		cmd := pack.GetSingleCmd()
		data := 0
		if cmd.Value {
			data = 1
		}
		return h.dispatch(c, pack, mapping.IOA(cmd.Ioa), data, cmd.Qoc.InSelect)

	case asdu.C_DC_NA_1:
		cmd := pack.GetDoubleCmd()
		return h.dispatch(c, pack, mapping.IOA(cmd.Ioa), int(cmd.Value), cmd.Qoc.InSelect)

	default:
		h.adapter.log.Debug("unsupported ASDU from master", "type", pack.Identifier.Type.String())
		return pack.SendReplyMirror(c, asdu.UnknownTypeID)
	}
}

// dispatch runs the command callback and mirrors the confirmation. A
// missing registration answers with unknown-IOA; a refused command with a
// negative activation confirm.
func (h *serverHandler) dispatch(c asdu.Connect, pack *asdu.ASDU, ioa mapping.IOA, data int, selectCmd bool) error {
	cb, ok := h.adapter.commandFor(ioa)
	if !ok {
		h.adapter.log.Warn("command for unregistered IOA", "ioa", uint32(ioa))
		return pack.SendReplyMirror(c, asdu.UnknownIOA)
	}

	if result := cb(ioa, data, selectCmd); result != 0 {
		pack.Identifier.Coa.IsNegative = true
	}
	return pack.SendReplyMirror(c, asdu.ActivationCon)
}

// clogBridge forwards the CS104 library's internal logging into the
// gateway logger.
type clogBridge struct {
	log *logging.Logger
}

func (b clogBridge) Critical(format string, v ...interface{}) { b.log.Error(fmt.Sprintf(format, v...)) }
func (b clogBridge) Error(format string, v ...interface{})    { b.log.Error(fmt.Sprintf(format, v...)) }
func (b clogBridge) Warn(format string, v ...interface{})     { b.log.Warn(fmt.Sprintf(format, v...)) }
func (b clogBridge) Debug(format string, v ...interface{})    { b.log.Debug(fmt.Sprintf(format, v...)) }
