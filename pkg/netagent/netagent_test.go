package netagent

import "testing"

func TestEnsureCreatesAndReusesByRadio(t *testing.T) {
	r := NewRegistry()

	a := r.Ensure("WIFI", false)
	b := r.Ensure("WIFI", true)

	if a.ID != b.ID {
		t.Fatalf("Ensure should return the same record for the same radio, got %s != %s", a.ID, b.ID)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
}

func TestSetScoreCarriesRequestedScore(t *testing.T) {
	r := NewRegistry()
	rec := r.Ensure("CELL", false)

	r.SetScore(rec.ID, 70)
	r.SetScore(rec.ID, 50) // a lower re-score is applied too
	got, _ := r.Get(rec.ID)
	if got.Score != 50 {
		t.Fatalf("Score = %d, want 50 (the agent carries the requested score)", got.Score)
	}

	r.SetScore(rec.ID, 95)
	got, _ = r.Get(rec.ID)
	if got.Score != 95 {
		t.Fatalf("Score = %d, want 95", got.Score)
	}
}

func TestTearDownKeepsRecordUntilConfirmed(t *testing.T) {
	r := NewRegistry()
	rec := r.Ensure("WIFI", false)

	r.TearDown(rec.ID)
	if !r.IsPendingTeardown(rec.ID) {
		t.Fatal("should be pending teardown")
	}
	if _, ok := r.Get(rec.ID); !ok {
		t.Fatal("record should still be visible before teardown is confirmed")
	}

	r.ConfirmTeardown(rec.ID)
	if _, ok := r.Get(rec.ID); ok {
		t.Fatal("record should be gone after confirmed teardown")
	}
	if r.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", r.Count())
	}
}

func TestSetStateUpdatesInfoNoopOnMissing(t *testing.T) {
	r := NewRegistry()
	rec := r.Ensure("WIFI", false)

	r.SetState(rec.ID, StateConnected)
	got, _ := r.Get(rec.ID)
	if got.Info.State != StateConnected {
		t.Fatalf("Info.State = %v, want StateConnected", got.Info.State)
	}

	r.SetState("missing-id", StateDisconnected) // must not panic
}

func TestSetupForceNewFalseIsIdempotent(t *testing.T) {
	r := NewRegistry()

	a := r.Setup("WIFI", "boot", false, Capabilities{}, LinkProperties{}, 0, "", false)
	b := r.Setup("WIFI", "boot", false, Capabilities{}, LinkProperties{}, 0, "", false)

	if a.ID != b.ID {
		t.Fatalf("two setup(forceNew=false) calls should yield the same agent, got %s != %s", a.ID, b.ID)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
}

func TestSetupForceNewTrueRetainsPrevious(t *testing.T) {
	r := NewRegistry()

	first := r.Setup("BT-PROXY", "First Boot", false, Capabilities{}, LinkProperties{}, 0, "phone", true)
	second := r.Setup("BT-PROXY", "Companion Connected", false, Capabilities{}, LinkProperties{}, 0, "phone", true)

	if first.ID == second.ID {
		t.Fatal("forceNew=true should create a new current agent, not reuse the previous one")
	}
	if r.Count() != 2 {
		t.Fatalf("Count() = %d, want 2 (previous agent retained until onUnwanted)", r.Count())
	}
	if _, ok := r.Get(first.ID); !ok {
		t.Fatal("previous agent should still be visible after a forced-new setup")
	}
}

// TestOnUnwantedRemovesAndKeepsCurrentScenario covers spec.md §8 E2E
// scenario 6: two setup(forceNew=true) calls followed by onUnwanted on
// the first leaves the first removed with a final Disconnected state
// and the second as the sole current agent.
func TestOnUnwantedRemovesAndKeepsCurrentScenario(t *testing.T) {
	r := NewRegistry()

	first := r.Setup("BT-PROXY", "First Boot", false, Capabilities{}, LinkProperties{}, 0, "phone", true)
	second := r.Setup("BT-PROXY", "Companion Connected", false, Capabilities{}, LinkProperties{}, 0, "phone", true)

	final, ok := r.OnUnwanted(first.ID)
	if !ok {
		t.Fatal("OnUnwanted should report success for a current agent")
	}
	if final.Info.State != StateDisconnected {
		t.Fatalf("final Info.State = %v, want StateDisconnected", final.Info.State)
	}

	if _, ok := r.Get(first.ID); ok {
		t.Fatal("first agent should be removed after onUnwanted")
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
	list := r.List()
	if len(list) != 1 || list[0].ID != second.ID {
		t.Fatalf("current agent after onUnwanted should be the second, got %+v", list)
	}

	// The radio's current marker must now point at the second agent: a
	// further forceNew=false setup reuses it rather than creating a third.
	third := r.Setup("BT-PROXY", "", false, Capabilities{}, LinkProperties{}, 0, "", false)
	if third.ID != second.ID {
		t.Fatalf("setup(forceNew=false) after onUnwanted should reuse the remaining current agent, got new id %s", third.ID)
	}
}

func TestOnUnwantedOnUnknownIDIsNoop(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.OnUnwanted("missing-id"); ok {
		t.Fatal("OnUnwanted on an unknown id should report false")
	}
}

func TestListIsSortedByID(t *testing.T) {
	r := NewRegistry()
	r.Ensure("WIFI", false)
	r.Ensure("CELL", false)

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].ID > list[1].ID {
		t.Fatal("List() should be sorted ascending by ID")
	}
}
