package power

import "testing"

func TestFreshTrackerIsNeitherChargingNorPowerSave(t *testing.T) {
	tr := NewTracker()
	if tr.Charging() || tr.PowerSave() {
		t.Fatal("fresh tracker should start false for both signals")
	}
}

func TestSignalsAreIndependent(t *testing.T) {
	tr := NewTracker()
	tr.SetCharging(true)

	if !tr.Charging() {
		t.Fatal("Charging() should be true after SetCharging(true)")
	}
	if tr.PowerSave() {
		t.Fatal("setting Charging must not affect PowerSave")
	}

	tr.SetPowerSave(true)
	if !tr.Charging() || !tr.PowerSave() {
		t.Fatal("both signals should be able to hold true at once")
	}
}

func TestSnapshotReflectsCurrentState(t *testing.T) {
	tr := NewTracker()
	tr.SetCharging(true)
	tr.SetPowerSave(false)

	snap := tr.Snapshot()
	if !snap.Charging || snap.PowerSave {
		t.Fatalf("Snapshot() = %+v, want {true false}", snap)
	}
}
