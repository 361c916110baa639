package radio

import "testing"

func TestHistoryCollapsesAdjacentDuplicateReasons(t *testing.T) {
	h := NewHistory()

	h.Record(Decision{Radio: BT, Enable: true, Reason: ReasonOnAuto})
	h.Record(Decision{Radio: BT, Enable: true, Reason: ReasonOnAuto})
	h.Record(Decision{Radio: BT, Enable: false, Reason: ReasonOffOffBody})

	snap := h.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("len(snap) = %d, want 2 (adjacent ON_AUTO duplicates should collapse)", len(snap))
	}
	if snap[0].Reason != ReasonOnAuto || snap[1].Reason != ReasonOffOffBody {
		t.Fatalf("unexpected reasons: %+v", snap)
	}
	if snap[0].Count != 2 {
		t.Fatalf("snap[0].Count = %d, want 2 (two ON_AUTO decisions collapsed)", snap[0].Count)
	}
	if snap[1].Count != 1 {
		t.Fatalf("snap[1].Count = %d, want 1", snap[1].Count)
	}
	if snap[0].TimestampMs == 0 || snap[1].TimestampMs == 0 {
		t.Fatal("collapsed and fresh entries should both carry a timestamp")
	}
}

func TestHistoryEvictsOldestPastCapacity(t *testing.T) {
	h := NewHistory()

	reasons := []Reason{ReasonOnAuto, ReasonOffOffBody}
	for i := 0; i < historyCapacity+10; i++ {
		h.Record(Decision{Radio: BT, Enable: i%2 == 0, Reason: reasons[i%2]})
	}

	snap := h.Snapshot()
	if len(snap) > historyCapacity {
		t.Fatalf("len(snap) = %d, want <= %d", len(snap), historyCapacity)
	}
}

func TestHistoryLast(t *testing.T) {
	h := NewHistory()
	if _, ok := h.Last(); ok {
		t.Fatal("Last() should report false on empty history")
	}

	h.Record(Decision{Radio: CELL, Enable: true, Reason: ReasonOnPhoneCall})
	last, ok := h.Last()
	if !ok || last.Reason != ReasonOnPhoneCall {
		t.Fatalf("Last() = %+v, %v", last, ok)
	}
}
