package gateway

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/iec61850"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/logging"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/mapping"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/metrics"
)

// buildTables writes a mapping file and builds the routing tables.
func buildTables(t *testing.T, content string) *mapping.Tables {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.local.ini")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write mapping file: %v", err)
	}
	tables, err := mapping.Build(path, logging.Nop())
	if err != nil {
		t.Fatalf("failed to build tables: %v", err)
	}
	return tables
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type cmdRecord struct {
	uri    string
	value  string
	action string
}

// fakeClient is a scriptable stand-in for the native MMS client. Every
// entry point except Close asserts mutual exclusion, covering the per-IED
// mutex invariant.
type fakeClient struct {
	mu sync.Mutex

	cb iec61850.Callbacks

	connectErr  error
	connectHang chan struct{} // Connect blocks until closed when non-nil
	registerErr error
	pollErr     error
	pollValues  map[string]iec61850.Value
	state       iec61850.ConnState
	cmdResult   int

	registered []string
	commands   []cmdRecord
	polls      atomic.Int32
	closed     atomic.Bool

	inCall    atomic.Int32
	raceFound atomic.Bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		state:      iec61850.StateConnected,
		pollValues: map[string]iec61850.Value{},
	}
}

func (f *fakeClient) enter() func() {
	if !f.inCall.CompareAndSwap(0, 1) {
		f.raceFound.Store(true)
	}
	return func() { f.inCall.Store(0) }
}

func (f *fakeClient) Connect(host string, port int) error {
	defer f.enter()()
	if f.connectHang != nil {
		<-f.connectHang
		return errors.New("connect aborted")
	}
	return f.connectErr
}

func (f *fakeClient) RegisterReadValue(uri string) error {
	defer f.enter()()
	if f.registerErr != nil {
		return f.registerErr
	}
	f.mu.Lock()
	f.registered = append(f.registered, uri)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Poll() error {
	defer f.enter()()
	f.polls.Add(1)
	if f.pollErr != nil {
		return f.pollErr
	}
	f.mu.Lock()
	values := f.pollValues
	cb := f.cb.OnPoll
	f.mu.Unlock()
	if cb != nil {
		for key, v := range values {
			cb(key, v)
		}
	}
	return nil
}

func (f *fakeClient) Read(uri string) (iec61850.Value, error) {
	defer f.enter()()
	return iec61850.Int(1), nil
}

func (f *fakeClient) State() iec61850.ConnState {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeClient) Select(uri, value string) int {
	defer f.enter()()
	f.mu.Lock()
	f.commands = append(f.commands, cmdRecord{uri: uri, value: value, action: "select"})
	f.mu.Unlock()
	return f.cmdResult
}

func (f *fakeClient) Operate(uri, value string) int {
	defer f.enter()()
	f.mu.Lock()
	f.commands = append(f.commands, cmdRecord{uri: uri, value: value, action: "operate"})
	f.mu.Unlock()
	return f.cmdResult
}

func (f *fakeClient) Close() {
	f.closed.Store(true)
}

// fakeFactory hands out pre-built clients in sequence, repeating the last
// one when the supervisor reconnects more often than scripted.
type fakeFactory struct {
	mu      sync.Mutex
	clients []*fakeClient
	next    int
	created int
}

func (ff *fakeFactory) factory(cb iec61850.Callbacks) iec61850.Client {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	c := ff.clients[ff.next]
	if ff.next < len(ff.clients)-1 {
		ff.next++
	}
	ff.created++
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
	return c
}

// fakeSink records translator output in place of the 104 adapter.
type fakeSink struct {
	mu          sync.Mutex
	updates     []sinkUpdate
	invalidated [][]mapping.IOA
	updateErr   error
}

type sinkUpdate struct {
	ioa   mapping.IOA
	value float64
}

func (s *fakeSink) Update(ioa mapping.IOA, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, sinkUpdate{ioa: ioa, value: value})
	return nil
}

func (s *fakeSink) InvalidateAll(ioas []mapping.IOA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, ioas)
}

func (s *fakeSink) snapshot() ([]sinkUpdate, [][]mapping.IOA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkUpdate(nil), s.updates...), append([][]mapping.IOA(nil), s.invalidated...)
}

func testMetrics() *metrics.Metrics {
	return metrics.New()
}
