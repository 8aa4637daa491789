package delivery

import (
	"sync"
	"testing"
	"time"
)

func TestBrokerDispatchesInSubmissionOrder(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	var mu sync.Mutex
	var got []string

	done := make(chan struct{})
	b.Register("audit", func(s Session) {
		mu.Lock()
		got = append(got, string(s.Body()))
		mu.Unlock()
		s.Close()
		if len(got) == 3 {
			close(done)
		}
	})

	b.Submit("audit", []byte("one"))
	b.Submit("audit", []byte("two"))
	b.Submit("audit", []byte("three"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBrokerIgnoresUnknownKind(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	called := make(chan struct{}, 1)
	b.Register("audit", func(s Session) { called <- struct{}{} })

	b.Submit("other", []byte("ignored"))
	b.Submit("audit", []byte("seen"))

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for registered-kind dispatch")
	}

	select {
	case <-called:
		t.Fatal("handler invoked twice; unknown kind should have been dropped")
	case <-time.After(50 * time.Millisecond):
	}
}
