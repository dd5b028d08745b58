package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/iec61850"
	"github.com/ridwankurniawanx/INOVASI-GTW61850TO104/pkg/logging"
)

func fastConfig() SupervisorConfig {
	return SupervisorConfig{
		PollingInterval:         2 * time.Millisecond,
		ReconnectDelay:          5 * time.Millisecond,
		ConnectionCheckInterval: 3 * time.Millisecond,
	}
}

func startSupervisor(t *testing.T, ied string, uris []string, ff *fakeFactory,
	cfg SupervisorConfig) (*Supervisor, *Registry, *Queue, context.CancelFunc, chan struct{}) {
	t.Helper()

	reg := NewRegistry()
	queue := NewQueue(256, logging.Nop(), testMetrics())
	sup := NewSupervisor(ied, uris, "", ff.factory, reg, queue, cfg, logging.Nop(), testMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()
	return sup, reg, queue, cancel, done
}

func TestSupervisorConnectsAndPublishes(t *testing.T) {
	client := newFakeClient()
	client.pollValues["IED1/LD0/CSWI1.Pos.stVal"] = iec61850.Seq{iec61850.Int(2)}
	ff := &fakeFactory{clients: []*fakeClient{client}}

	uri := "iec61850://10.0.0.1:102/IED1/LD0/CSWI1.Pos.stVal"
	sup, reg, queue, cancel, done := startSupervisor(t, "10.0.0.1:102", []string{uri}, ff, fastConfig())

	waitFor(t, "supervisor to connect", func() bool {
		return sup.State() == StateConnected && reg.Lookup("10.0.0.1:102") != nil
	})

	client.mu.Lock()
	registered := append([]string(nil), client.registered...)
	client.mu.Unlock()
	if len(registered) != 1 || registered[0] != uri {
		t.Errorf("registered URIs = %v, want [%s]", registered, uri)
	}

	// The initial forced read already queued a data event.
	waitFor(t, "initial poll data", func() bool { return queue.Len() > 0 })
	ev := <-queue.C()
	if ev.Kind != EventData || ev.IED != "10.0.0.1:102" {
		t.Errorf("first event = %+v, want data from 10.0.0.1:102", ev)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}

	if sup.State() != StateTerminated {
		t.Errorf("final state = %s, want TERMINATED", sup.State())
	}
	if reg.Lookup("10.0.0.1:102") != nil {
		t.Error("handle still published after shutdown")
	}
	if client.raceFound.Load() {
		t.Error("native client calls were not mutually exclusive")
	}
}

func TestSupervisorFaultInvalidatesAndReconnects(t *testing.T) {
	// First connection survives until liveness fails; the second sticks.
	failing := newFakeClient()
	healthy := newFakeClient()
	ff := &fakeFactory{clients: []*fakeClient{failing, healthy}}

	uri := "iec61850://10.0.0.1:102/IED1/LD0/CSWI1.Pos.stVal"
	sup, _, queue, cancel, done := startSupervisor(t, "10.0.0.1:102", []string{uri}, ff, fastConfig())
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, "first connection", func() bool { return sup.State() == StateConnected })

	// Kill the liveness probe: only the CONNECTED sentinel counts.
	failing.mu.Lock()
	failing.state = iec61850.StateClosed
	failing.mu.Unlock()

	waitFor(t, "reconnection on fresh client", func() bool {
		ff.mu.Lock()
		defer ff.mu.Unlock()
		return ff.created >= 2 && sup.State() == StateConnected
	})

	if !failing.closed.Load() {
		t.Error("faulted client was not closed")
	}

	// Drain the queue: the invalidation must be present and must follow
	// every data event of the faulted connection.
	var kinds []EventKind
	for queue.Len() > 0 {
		ev := <-queue.C()
		kinds = append(kinds, ev.Kind)
	}
	sawInvalidate := false
	for _, k := range kinds {
		if k == EventInvalidate {
			sawInvalidate = true
		} else if sawInvalidate {
			// Data events after the invalidation belong to the new
			// connection, which is fine; a data event from the old
			// connection cannot appear here because the old client is
			// closed before the invalidation is queued.
			break
		}
	}
	if !sawInvalidate {
		t.Fatal("no invalidation event after fault")
	}
	if failing.raceFound.Load() || healthy.raceFound.Load() {
		t.Error("native client calls were not mutually exclusive")
	}
}

func TestSupervisorConnectFailureBacksOff(t *testing.T) {
	client := newFakeClient()
	client.connectErr = errors.New("connection refused")
	ff := &fakeFactory{clients: []*fakeClient{client}}

	sup, _, queue, cancel, done := startSupervisor(t, "10.0.0.1:102",
		[]string{"iec61850://10.0.0.1:102/IED1/LD0/CSWI1.Pos.stVal"}, ff, fastConfig())
	defer func() {
		cancel()
		<-done
	}()

	// Each failed attempt faults and queues an invalidation.
	waitFor(t, "repeated connect attempts", func() bool {
		ff.mu.Lock()
		defer ff.mu.Unlock()
		return ff.created >= 2
	})

	ev := <-queue.C()
	if ev.Kind != EventInvalidate {
		t.Errorf("first event = %+v, want invalidation", ev)
	}
	if sup.State() == StateConnected {
		t.Error("supervisor cannot be CONNECTED with a refusing IED")
	}
}

func TestSupervisorShutdownInterruptsBackoff(t *testing.T) {
	client := newFakeClient()
	client.connectErr = errors.New("connection refused")
	ff := &fakeFactory{clients: []*fakeClient{client}}

	cfg := fastConfig()
	cfg.ReconnectDelay = time.Hour

	_, _, _, cancel, done := startSupervisor(t, "10.0.0.1:102",
		[]string{"iec61850://10.0.0.1:102/IED1/LD0/CSWI1.Pos.stVal"}, ff, cfg)

	waitFor(t, "first connect attempt", func() bool {
		ff.mu.Lock()
		defer ff.mu.Unlock()
		return ff.created >= 1
	})

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not interrupt the reconnect back-off")
	}
}

func TestHungIEDDoesNotBlockOthers(t *testing.T) {
	// S4: IED A hangs inside its connect call; IED B keeps translating.
	hang := make(chan struct{})
	defer close(hang)

	hungClient := newFakeClient()
	hungClient.connectHang = hang
	ffA := &fakeFactory{clients: []*fakeClient{hungClient}}

	healthy := newFakeClient()
	healthy.pollValues["IED2/LD0/GGIO1.Ind1.stVal"] = iec61850.Int(1)
	ffB := &fakeFactory{clients: []*fakeClient{healthy}}

	reg := NewRegistry()
	queue := NewQueue(256, logging.Nop(), testMetrics())

	supA := NewSupervisor("10.0.0.1:102",
		[]string{"iec61850://10.0.0.1:102/IED1/LD0/CSWI1.Pos.stVal"}, "",
		ffA.factory, reg, queue, fastConfig(), logging.Nop(), testMetrics())
	supB := NewSupervisor("10.0.0.2:102",
		[]string{"iec61850://10.0.0.2:102/IED2/LD0/GGIO1.Ind1.stVal"}, "",
		ffB.factory, reg, queue, fastConfig(), logging.Nop(), testMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go supA.Run(ctx)

	doneB := make(chan struct{})
	go func() {
		supB.Run(ctx)
		close(doneB)
	}()

	waitFor(t, "IED B to connect while A hangs", func() bool {
		return supB.State() == StateConnected
	})

	waitFor(t, "data from IED B", func() bool {
		return queue.Len() > 0
	})
	ev := <-queue.C()
	if ev.IED != "10.0.0.2:102" {
		t.Errorf("event from %s, want 10.0.0.2:102", ev.IED)
	}

	if supA.State() == StateConnected {
		t.Error("hung IED A cannot be CONNECTED")
	}

	cancel()
	select {
	case <-doneB:
	case <-time.After(2 * time.Second):
		t.Fatal("IED B supervisor did not stop")
	}
}
