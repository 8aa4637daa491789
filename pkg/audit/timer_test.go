package audit

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAuditTimerFires(t *testing.T) {
	var fired int32
	tm := &auditTimer{}
	tm.arm(10*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
}

func TestAuditTimerCancelSuppressesCallback(t *testing.T) {
	var fired int32
	tm := &auditTimer{}
	tm.arm(10*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	tm.cancel()

	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("fired = %d, want 0 after cancel", fired)
	}
}

func TestAuditTimerRearmSuppressesPriorCallback(t *testing.T) {
	var fired int32
	tm := &auditTimer{}
	tm.arm(10*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	tm.arm(200*time.Millisecond, func() { atomic.AddInt32(&fired, 10) })

	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("fired = %d, want 0 before the second arming expires", fired)
	}

	time.Sleep(200 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 10 {
		t.Fatalf("fired = %d, want 10 from the surviving arming only", fired)
	}
}
