// Package iec104 adapts the external CS104 server library to the gateway
// engine: point registration, thread-safe value updates, quality
// invalidation and inbound command dispatch.
package iec104

import (
	"fmt"
	"math"
	"sync"

	"github.com/thinkgos/go-iecp5/asdu"
	"github.com/thinkgos/go-iecp5/cs104"

	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/logging"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/mapping"
)

// CommandCallback handles an inbound select or operate request. It runs on
// the 104 server goroutine and must return synchronously: 0 accepted,
// non-zero rejected.
type CommandCallback func(ioa mapping.IOA, data int, selectCmd bool) int

// point is one registered information object and its in-memory state.
type point struct {
	typ     mapping.PointType
	value   float64
	quality asdu.QualityDescriptor
	cb      CommandCallback
}

// Adapter is the gateway-side facade over the CS104 server. Update and
// InvalidateAll are callable from worker goroutines; the adapter guards
// its point table with a mutex rather than assuming the library
// serializes for it.
type Adapter struct {
	mu     sync.Mutex
	points map[mapping.IOA]*point
	order  []mapping.IOA

	srv  *cs104.Server
	conn asdu.Connect
	ca   asdu.CommonAddr
	addr string
	log  *logging.Logger
}

// New creates an adapter listening on addr with the given ASDU common
// address once started.
func New(addr string, commonAddr uint16, log *logging.Logger) *Adapter {
	a := &Adapter{
		points: make(map[mapping.IOA]*point),
		ca:     asdu.CommonAddr(commonAddr),
		addr:   addr,
		log:    log,
	}

	a.srv = cs104.NewServer(&serverHandler{adapter: a})
	a.srv.SetLogProvider(clogBridge{log: log})
	a.srv.LogMode(false)
	a.srv.SetOnConnectionHandler(func(c asdu.Connect) {
		log.Info("104 master connected")
	})
	a.srv.SetConnectionLostHandler(func(c asdu.Connect) {
		log.Warn("104 master connection lost")
	})

	// Spontaneous transmissions broadcast through the server itself.
	a.conn = a.srv
	return a
}

// Register adds an information object before the server starts. The first
// registration of an address wins; a second one is rejected so the caller
// can log and skip the colliding entry.
func (a *Adapter) Register(ioa mapping.IOA, typ mapping.PointType, cb CommandCallback) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.points[ioa]; ok {
		return fmt.Errorf("IOA %d already registered as %s", uint32(ioa), existing.typ)
	}
	if typ.IsCommand() && cb == nil {
		return fmt.Errorf("IOA %d: command type %s requires a callback", uint32(ioa), typ)
	}

	a.points[ioa] = &point{typ: typ, quality: asdu.QDSGood, cb: cb}
	a.order = append(a.order, ioa)
	return nil
}

// Start serves the CS104 endpoint on its own goroutine.
func (a *Adapter) Start() {
	a.log.Info("starting 104 server", "listen", a.addr, "common_address", int(a.ca))
	go a.srv.ListenAndServer(a.addr)
}

// Stop closes the listener and every master session.
func (a *Adapter) Stop() error {
	a.log.Info("stopping 104 server")
	return a.srv.Close()
}

// Update stores a coerced value for a monitoring object and emits a
// spontaneous ASDU of the registered type.
func (a *Adapter) Update(ioa mapping.IOA, value float64) error {
	a.mu.Lock()
	p, ok := a.points[ioa]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("IOA %d is not registered", uint32(ioa))
	}
	if p.typ.IsCommand() {
		a.mu.Unlock()
		return fmt.Errorf("IOA %d is a command object", uint32(ioa))
	}
	p.value = value
	p.quality = asdu.QDSGood
	typ := p.typ
	a.mu.Unlock()

	return a.send(a.conn, typ, ioa, value, asdu.QDSGood, asdu.Spontaneous)
}

// InvalidateAll publishes one spontaneous ASDU per address with the
// invalid and not-topical quality bits set, then marks the in-memory
// values as NaN. Called by the translation worker when an IED faults.
func (a *Adapter) InvalidateAll(ioas []mapping.IOA) {
	for _, ioa := range ioas {
		a.mu.Lock()
		p, ok := a.points[ioa]
		if !ok || p.typ.IsCommand() {
			a.mu.Unlock()
			continue
		}
		typ := p.typ
		a.mu.Unlock()

		if err := a.send(a.conn, typ, ioa, 0, asdu.QDSInvalid|asdu.QDSNotTopical, asdu.Spontaneous); err != nil {
			a.log.Debug("invalid-quality ASDU not delivered", "ioa", uint32(ioa), "error", err.Error())
		}

		a.mu.Lock()
		p.value = math.NaN()
		p.quality = asdu.QDSInvalid | asdu.QDSNotTopical
		a.mu.Unlock()
	}
}

// Value returns the in-memory value of a registered monitoring object.
func (a *Adapter) Value(ioa mapping.IOA) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.points[ioa]
	if !ok || p.typ.IsCommand() {
		return 0, false
	}
	return p.value, true
}

// snapshot copies the monitoring points in registration order for
// interrogation replies.
type pointSnapshot struct {
	ioa     mapping.IOA
	typ     mapping.PointType
	value   float64
	quality asdu.QualityDescriptor
}

func (a *Adapter) snapshot() []pointSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]pointSnapshot, 0, len(a.order))
	for _, ioa := range a.order {
		p := a.points[ioa]
		if p.typ.IsCommand() {
			continue
		}
		out = append(out, pointSnapshot{ioa: ioa, typ: p.typ, value: p.value, quality: p.quality})
	}
	return out
}

// commandFor fetches the callback of a registered command object.
func (a *Adapter) commandFor(ioa mapping.IOA) (CommandCallback, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.points[ioa]
	if !ok || !p.typ.IsCommand() || p.cb == nil {
		return nil, false
	}
	return p.cb, true
}

// send encodes one information object of the registered 104 type. NaN
// values travel as zero; the quality descriptor carries the invalid flag
// in that case.
func (a *Adapter) send(c asdu.Connect, typ mapping.PointType, ioa mapping.IOA, value float64, qds asdu.QualityDescriptor, cause asdu.Cause) error {
	if math.IsNaN(value) {
		value = 0
	}
	coa := asdu.CauseOfTransmission{Cause: cause}
	addr := asdu.InfoObjAddr(ioa)

	switch typ {
	case mapping.MeasuredValueScaled:
		return asdu.MeasuredValueScaled(c, false, coa, a.ca, asdu.MeasuredValueScaledInfo{
			Ioa:   addr,
			Value: int16(value),
			Qds:   qds,
		})
	case mapping.MeasuredValueShort:
		return asdu.MeasuredValueFloat(c, false, coa, a.ca, asdu.MeasuredValueFloatInfo{
			Ioa:   addr,
			Value: float32(value),
			Qds:   qds,
		})
	case mapping.SinglePointInformation:
		return asdu.Single(c, false, coa, a.ca, asdu.SinglePointInfo{
			Ioa:   addr,
			Value: value != 0,
			Qds:   qds,
		})
	case mapping.DoublePointInformation:
		// Coerced values are already on the DPI scale:
		// 0 intermediate, 1 off, 2 on.
		return asdu.Double(c, false, coa, a.ca, asdu.DoublePointInfo{
			Ioa:   addr,
			Value: asdu.DoublePoint(value),
			Qds:   qds,
		})
	default:
		return fmt.Errorf("IOA %d: type %s is not transmittable", uint32(ioa), typ)
	}
}
