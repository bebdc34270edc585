// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"slices"
	"testing"
)

func TestQueueArming(t *testing.T) {
	t.Parallel()

	q := newQueue("/srv", 0, nil)
	q.push(RawEvent{Dir: "/srv", Kind: KindCreated, Name: "a"})

	first := q.Drain()
	if len(first) != 1 || first[0].Name != "a" {
		t.Fatalf("Drain() = %v", first)
	}

	// Disarmed: events accumulate but are not handed out.
	q.push(RawEvent{Dir: "/srv", Kind: KindModified, Name: "a"})
	if got := q.Drain(); got != nil {
		t.Fatalf("Drain() while disarmed = %v, want nil", got)
	}
	if q.size() != 1 {
		t.Fatalf("pending = %d, want 1", q.size())
	}

	q.Rearm()
	second := q.Drain()
	if len(second) != 1 || second[0].Kind != KindModified {
		t.Fatalf("Drain() after Rearm = %v", second)
	}
}

func TestQueueEmptyDrainKeepsArmed(t *testing.T) {
	t.Parallel()

	q := newQueue("/srv", 0, nil)
	if got := q.Drain(); got != nil {
		t.Fatalf("Drain() = %v, want nil", got)
	}
	q.push(RawEvent{Dir: "/srv", Kind: KindCreated, Name: "a"})
	if got := q.Drain(); len(got) != 1 {
		t.Fatalf("an empty drain must not disarm, got %v", got)
	}
}

func TestQueueOverflow(t *testing.T) {
	t.Parallel()

	q := newQueue("/srv", 2, nil)
	for _, name := range []string{"a", "b", "c", "d"} {
		q.push(RawEvent{Dir: "/srv", Kind: KindCreated, Name: name})
	}

	kinds := make([]Kind, 0, 3)
	for _, ev := range q.Drain() {
		kinds = append(kinds, ev.Kind)
	}
	want := []Kind{KindCreated, KindCreated, KindOverflow}
	if !slices.Equal(kinds, want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
}

func TestQueueCollapsesAdjacentDeletes(t *testing.T) {
	t.Parallel()

	q := newQueue("/srv", 0, nil)
	q.push(RawEvent{Dir: "/srv", Kind: KindDeleted, Name: "sub"})
	q.push(RawEvent{Dir: "/srv", Kind: KindDeleted, Name: "sub"})
	q.push(RawEvent{Dir: "/srv", Kind: KindCreated, Name: "sub"})
	q.push(RawEvent{Dir: "/srv", Kind: KindDeleted, Name: "sub"})

	if got := len(q.Drain()); got != 3 {
		t.Fatalf("expected 3 events after collapsing, got %d", got)
	}
}

func TestQueueCancel(t *testing.T) {
	t.Parallel()

	var canceled int
	q := newQueue("/srv", 0, func() error {
		canceled++
		return nil
	})
	q.push(RawEvent{Dir: "/srv", Kind: KindModified, Name: "first"})
	if got := len(q.Drain()); got != 1 {
		t.Fatalf("expected 1 drained event, got %d", got)
	}
	// Disarmed: Drain hands out nothing, Cancel still returns the backlog.
	q.push(RawEvent{Dir: "/srv", Kind: KindCreated, Name: "a"})
	if got := q.Drain(); got != nil {
		t.Fatalf("disarmed queue drained %v", got)
	}

	pending, err := q.Cancel()
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "a" {
		t.Fatalf("Cancel() pending = %+v, want the queued created event", pending)
	}
	pending, err = q.Cancel()
	if err != nil {
		t.Fatalf("second Cancel() error = %v", err)
	}
	if pending != nil {
		t.Errorf("second Cancel() returned %v", pending)
	}
	if canceled != 1 {
		t.Errorf("release ran %d times, want 1", canceled)
	}

	q.push(RawEvent{Dir: "/srv", Kind: KindCreated, Name: "b"})
	if got := q.Drain(); got != nil {
		t.Errorf("canceled queue returned %v", got)
	}
}
