package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestInFlightRegistryRegisterAndCancel(t *testing.T) {
	r := NewInFlightRegistry()

	cancelled := false
	r.Register("req-1", func() { cancelled = true })

	if !r.Cancel("req-1") {
		t.Error("Cancel should return true for registered ID")
	}
	if !cancelled {
		t.Error("cancel function should have been called")
	}
	if r.Cancel("req-1") {
		t.Error("Cancel should return false after already cancelled")
	}
}

func TestInFlightRegistryCancelUnknown(t *testing.T) {
	r := NewInFlightRegistry()
	if r.Cancel("missing") {
		t.Error("Cancel should return false for unknown ID")
	}
}

func TestInFlightRegistryRemove(t *testing.T) {
	r := NewInFlightRegistry()

	cancelled := false
	r.Register("req-1", func() { cancelled = true })
	r.Remove("req-1")

	if r.Cancel("req-1") {
		t.Error("Cancel should return false after Remove")
	}
	if cancelled {
		t.Error("cancel function should not have been called by Remove")
	}
	r.Remove("missing")
}

func TestInFlightRegistryCancelAll(t *testing.T) {
	r := NewInFlightRegistry()
	var n atomic.Int64
	for i := range 5 {
		r.Register(fmt.Sprintf("req-%d", i), func() { n.Add(1) })
	}
	if r.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", r.Len())
	}

	if got := r.CancelAll(); got != 5 {
		t.Errorf("CancelAll() = %d, want 5", got)
	}
	if n.Load() != 5 {
		t.Errorf("cancellations = %d, want 5", n.Load())
	}
	if r.Len() != 0 {
		t.Errorf("Len() after CancelAll = %d, want 0", r.Len())
	}
}

func TestInFlightRegistryConcurrentAccess(t *testing.T) {
	r := NewInFlightRegistry()
	var cancelCount atomic.Int64
	const numEntries = 100

	var wg sync.WaitGroup
	for i := range numEntries {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Register(id, func() { cancelCount.Add(1) })
		}(fmt.Sprintf("req-%d", i))
	}
	wg.Wait()

	for i := range numEntries / 2 {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Cancel(id)
		}(fmt.Sprintf("req-%d", i))
	}
	wg.Wait()

	if cancelCount.Load() != numEntries/2 {
		t.Errorf("expected %d cancellations, got %d", numEntries/2, cancelCount.Load())
	}

	for i := numEntries / 2; i < numEntries; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Remove(id)
		}(fmt.Sprintf("req-%d", i))
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}
