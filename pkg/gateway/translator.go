package gateway

import (
	"context"
	"net/url"
	"strings"

	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/iec61850"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/logging"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/mapping"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/metrics"
)

// PointSink is the 104-side surface the translator writes to. Satisfied
// by *iec104.Adapter; tests substitute a recorder.
type PointSink interface {
	Update(ioa mapping.IOA, value float64) error
	InvalidateAll(ioas []mapping.IOA)
}

// Translator is the single consumer of the update queue. It resolves
// reported keys to information object addresses, coerces values to their
// 104 type and writes them to the server adapter.
type Translator struct {
	tables *mapping.Tables
	sink   PointSink
	queue  *Queue
	log    *logging.Logger
	m      *metrics.Metrics
}

// NewTranslator creates the translation worker.
func NewTranslator(tables *mapping.Tables, sink PointSink, queue *Queue,
	log *logging.Logger, m *metrics.Metrics) *Translator {
	return &Translator{
		tables: tables,
		sink:   sink,
		queue:  queue,
		log:    log,
		m:      m,
	}
}

// Run consumes events until the context is cancelled, then drains what is
// already buffered so events, invalidations included, queued before the
// shutdown still reach the master.
func (t *Translator) Run(ctx context.Context) {
	t.log.Info("translation worker started")

	for {
		select {
		case <-ctx.Done():
			t.drain()
			t.log.Info("translation worker stopped")
			return
		case ev := <-t.queue.C():
			t.handle(ev)
		}
	}
}

// drain processes events already buffered at shutdown without waiting for
// new ones.
func (t *Translator) drain() {
	for {
		select {
		case ev := <-t.queue.C():
			t.handle(ev)
		default:
			return
		}
	}
}

func (t *Translator) handle(ev Event) {
	switch ev.Kind {
	case EventData:
		t.handleData(ev)
	case EventInvalidate:
		t.handleInvalidate(ev)
	}
}

func (t *Translator) handleData(ev Event) {
	reportedPath := NormalizeKey(ev.Key)

	raw, ok := iec61850.FirstFloat(ev.Value)
	if !ok {
		t.log.Warn("discarding update without numeric payload",
			"ied", ev.IED, "key", ev.Key, "source", ev.Source.String())
		t.m.UpdatesDiscarded.WithLabelValues(ev.IED, "non_numeric").Inc()
		return
	}

	ioa, configPath, ok := t.tables.MatchReported(ev.IED, reportedPath)
	if !ok {
		t.log.Warn("no matching config for reported key",
			"ied", ev.IED, "key", ev.Key, "source", ev.Source.String())
		t.m.UpdatesDiscarded.WithLabelValues(ev.IED, "no_mapping").Inc()
		return
	}

	value := Coerce(t.tables.IOAType[ioa], raw, t.tables.Inverted[ioa])
	if err := t.sink.Update(ioa, value); err != nil {
		t.log.Error("104 update failed",
			"ied", ev.IED, "ioa", uint32(ioa), "error", err.Error())
		t.m.UpdatesDiscarded.WithLabelValues(ev.IED, "update_failed").Inc()
		return
	}

	t.log.Info("matched reported key to IOA",
		"ied", ev.IED, "key", ev.Key, "path", configPath,
		"ioa", uint32(ioa), "value", value, "source", ev.Source.String())
	t.m.UpdatesTranslated.WithLabelValues(ev.IED).Inc()
}

func (t *Translator) handleInvalidate(ev Event) {
	ioas := t.tables.Owned(ev.IED)
	if len(ioas) == 0 {
		return
	}

	// Command objects are owned by the IED but never published as invalid.
	points := 0
	for _, ioa := range ioas {
		if !t.tables.IOAType[ioa].IsCommand() {
			points++
		}
	}

	t.log.Warn("invalidating data points for faulted IED",
		"ied", ev.IED, "points", points)
	t.sink.InvalidateAll(ioas)
	t.m.Invalidations.WithLabelValues(ev.IED).Add(float64(points))
}

// NormalizeKey reduces a reported key to an MMS path: URI-formed keys
// yield their path without the leading slash, anything else passes
// through verbatim.
func NormalizeKey(key string) string {
	if !strings.Contains(key, "iec61850://") {
		return key
	}
	u, err := url.Parse(key)
	if err != nil {
		return key
	}
	return strings.TrimPrefix(u.Path, "/")
}

// Coerce maps a raw numeric payload onto the wire representation of the
// point's 104 type, applying polarity inversion for status points.
func Coerce(typ mapping.PointType, raw float64, invert bool) float64 {
	switch typ {
	case mapping.SinglePointInformation:
		v := 0.0
		if int64(raw) != 0 {
			v = 1
		}
		if invert {
			v = 1 - v
		}
		return v

	case mapping.DoublePointInformation:
		var v float64
		switch raw {
		case 1.0:
			v = 1
		case 2.0:
			v = 2
		default:
			v = 0
		}
		if invert {
			switch v {
			case 1:
				v = 2
			case 2:
				v = 1
			}
		}
		return v

	default:
		// Measurements pass through untouched.
		return raw
	}
}
