package audit

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/ward/pkg/delivery"
	"github.com/cuemby/ward/pkg/wire"
	"github.com/rs/zerolog"
)

func newTestCoordinator(t *testing.T, mode Mode, ceiling int) *Coordinator {
	t.Helper()
	return newTestCoordinatorWithTimers(t, mode, ceiling, time.Minute, time.Minute, time.Minute)
}

func newTestCoordinatorWithTimers(t *testing.T, mode Mode, ceiling int, leaderAlive, primaryAlive, leaderProgress time.Duration) *Coordinator {
	t.Helper()

	broker := delivery.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	c, err := NewCoordinator(broker, Config{
		NodeID:                "node-1",
		Mode:                  mode,
		MemoryCeiling:         ceiling,
		LeaderAliveTimeout:    leaderAlive,
		PrimaryAliveTimeout:   primaryAlive,
		LeaderProgressTimeout: leaderProgress,
		Logger:                zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func waitForErrorCount(t *testing.T, c *Coordinator, want uint64, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.ErrorCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("error_count did not reach %d within %s (got %d)", want, timeout, c.ErrorCount())
}

func TestLeaderConflict(t *testing.T) {
	c := newTestCoordinator(t, ModeRaft, 100)

	c.handleLeaderStatus(1, "fred", 0, 0)
	c.handleLeaderStatus(2, "smith", 0, 0)
	c.handleLeaderStatus(1, "franny", 0, 0)
	c.handleLeaderStatus(2, "smith", 0, 0)

	if got := c.ErrorCount(); got != 1 {
		t.Fatalf("error_count = %d, want 1", got)
	}
}

func TestPrimaryConflict(t *testing.T) {
	c := newTestCoordinator(t, ModePBFT, 100)

	c.handlePrimaryStatus(1, "fred")
	c.handlePrimaryStatus(2, "smith")
	c.handlePrimaryStatus(1, "franny")
	c.handlePrimaryStatus(2, "smith")

	if got := c.ErrorCount(); got != 1 {
		t.Fatalf("error_count = %d, want 1", got)
	}
}

func TestRaftCommitConflict(t *testing.T) {
	c := newTestCoordinator(t, ModeRaft, 100)

	c.handleRaftCommit(1, "set a")
	c.handleRaftCommit(2, "set b")
	c.handleRaftCommit(1, "set c")

	if got := c.ErrorCount(); got != 1 {
		t.Fatalf("error_count = %d, want 1", got)
	}
}

func TestNoLeaderAlive(t *testing.T) {
	c := newTestCoordinatorWithTimers(t, ModeRaft, 100, 20*time.Millisecond, time.Minute, time.Minute)
	c.Start()

	waitForErrorCount(t, c, 1, time.Second)
}

func TestLeaderStuck(t *testing.T) {
	c := newTestCoordinatorWithTimers(t, ModeRaft, 100, time.Minute, time.Minute, 20*time.Millisecond)

	c.handleLeaderStatus(1, "fred", 8, 6)
	c.handleLeaderStatus(1, "fred", 8, 6)

	waitForErrorCount(t, c, 1, time.Second)
}

func TestIdleLeaderNoError(t *testing.T) {
	c := newTestCoordinatorWithTimers(t, ModeRaft, 100, time.Minute, time.Minute, 20*time.Millisecond)

	c.handleLeaderStatus(1, "fred", 8, 6)
	c.handleLeaderStatus(1, "fred", 8, 8)

	time.Sleep(100 * time.Millisecond)
	if got := c.ErrorCount(); got != 0 {
		t.Fatalf("error_count = %d, want 0", got)
	}
}

func TestLeaderLivelockTolerated(t *testing.T) {
	// The progress timer is re-armed by every event and stays armed after the
	// last one, so it is given a timeout longer than the test's window.
	c := newTestCoordinatorWithTimers(t, ModeRaft, 100, time.Minute, time.Minute, time.Minute)

	leaders := []string{"fred", "joe"}
	for i := uint64(1); i <= 10; i++ {
		c.handleLeaderStatus(i, leaders[i%2], i, i-1)
	}

	time.Sleep(100 * time.Millisecond)
	if got := c.ErrorCount(); got != 0 {
		t.Fatalf("error_count = %d, want 0 (known livelock limitation)", got)
	}
}

func TestForgetting(t *testing.T) {
	const M = 10
	c := newTestCoordinator(t, ModeRaft, M)

	for i := uint64(0); i < 100; i++ {
		c.handleLeaderStatus(i, "a", 0, 0)
		c.handleLeaderStatus(i, "b", 0, 0)
		c.handleRaftCommit(i, "op")
	}

	if got := c.CurrentMemorySize(); got > 3*M {
		t.Fatalf("current_memory_size = %d, want <= %d", got, 3*M)
	}

	before := c.ErrorCount()
	c.handleLeaderStatus(1000, "x", 0, 0)
	c.handleLeaderStatus(1000, "y", 0, 0)
	if got := c.ErrorCount(); got != before+1 {
		t.Fatalf("error_count after fresh conflict = %d, want %d", got, before+1)
	}

	if got := len(c.ErrorStrings()); got != M {
		t.Fatalf("len(error_strings) = %d, want %d", got, M)
	}
	if got := c.ErrorCount(); got <= uint64(M) {
		t.Fatalf("error_count = %d, want > %d", got, M)
	}
}

func TestMetricEmissionOnConflict(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer pc.Close()

	broker := delivery.NewBroker()
	broker.Start()
	defer broker.Stop()

	c, err := NewCoordinator(broker, Config{
		NodeID:          "node-1",
		Mode:            ModeRaft,
		MemoryCeiling:   100,
		MonitorEndpoint: pc.LocalAddr().String(),
		Logger:          zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	defer c.Close()

	c.handleLeaderStatus(1, "fred", 0, 0)
	c.handleLeaderStatus(1, "george", 0, 0)

	pc.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1024)
	found := false
	for i := 0; i < 5; i++ {
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			break
		}
		if strings.Contains(string(buf[:n]), "audit.leader.conflict") {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected a datagram containing audit.leader.conflict")
	}
}

type fakeSession struct{ body []byte }

func (s *fakeSession) Body() []byte { return s.body }
func (s *fakeSession) Close() error { return nil }

func TestModeAlienEventDropped(t *testing.T) {
	c := newTestCoordinator(t, ModePBFT, 100)

	event := wire.EncodeLeaderStatus(wire.LeaderStatus{Term: 1, Leader: "x"})
	body, err := wire.EncodeEnvelope(event)
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}

	c.dispatch(&fakeSession{body: body})

	if c.leaderHistory.len() != 0 {
		t.Fatal("leaderHistory should remain empty for a mode-alien event")
	}
	if got := c.ErrorCount(); got != 0 {
		t.Fatalf("error_count = %d, want 0", got)
	}
}

func TestFirstWriterWinsHistoryInvariant(t *testing.T) {
	c := newTestCoordinator(t, ModeRaft, 100)

	c.handleLeaderStatus(5, "first", 0, 0)
	c.handleLeaderStatus(5, "second", 0, 0)
	c.handleLeaderStatus(5, "third", 0, 0)

	got, ok := c.leaderHistory.get(5)
	if !ok || got != "first" {
		t.Fatalf("leader for term 5 = %q, want %q (first-writer-wins)", got, "first")
	}
	if got := c.ErrorCount(); got != 2 {
		t.Fatalf("error_count = %d, want 2 (two conflicting re-observations)", got)
	}
}

func TestBoundedHistorySizeInvariant(t *testing.T) {
	const M = 5
	c := newTestCoordinator(t, ModeRaft, M)

	for i := uint64(0); i < 50; i++ {
		c.handleRaftCommit(i, "op")
	}

	if got := c.raftCommits.len(); got > M {
		t.Fatalf("raftCommits.len() = %d, want <= %d", got, M)
	}
}
