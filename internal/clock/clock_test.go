package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	var order []int
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })
	c.AfterFunc(time.Second, func() { order = append(order, 1) })
	stopped := c.AfterFunc(1500*time.Millisecond, func() { order = append(order, 99) })
	if !stopped.Stop() {
		t.Fatalf("expected Stop to report an armed timer")
	}

	c.Advance(1999 * time.Millisecond)
	if len(order) != 1 || order[0] != 1 {
		t.Fatalf("after 1.999s got %v", order)
	}
	c.Advance(time.Millisecond)
	if len(order) != 2 || order[1] != 2 {
		t.Fatalf("after 2s got %v", order)
	}
	if c.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", c.Pending())
	}
	if got := c.Now(); !got.Equal(time.Unix(2, 0)) {
		t.Fatalf("unexpected now %v", got)
	}
}

func TestFakeAutoAdvance(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	c.AutoAdvance = true
	select {
	case <-c.After(3 * time.Second):
	default:
		t.Fatalf("auto-advance After should be ready immediately")
	}
	if got := c.Now(); !got.Equal(time.Unix(3, 0)) {
		t.Fatalf("unexpected now %v", got)
	}
}
