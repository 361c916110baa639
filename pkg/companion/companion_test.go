package companion

import "testing"

func TestPairIsUnknownUntilPaired(t *testing.T) {
	tr := NewTracker()
	if tr.Paired() {
		t.Fatal("fresh tracker should not be paired")
	}
	if tr.ACLConnected() {
		t.Fatal("fresh tracker should not report ACL connected")
	}
}

func TestPairDoesNotImplyACLConnected(t *testing.T) {
	tr := NewTracker()
	tr.Pair("AA:BB:CC:DD:EE:FF", "Pixel Watch Companion", LinkBLE)

	if !tr.Paired() {
		t.Fatal("tracker should report paired after Pair")
	}
	if tr.ACLConnected() {
		t.Fatal("pairing must not imply ACL connectivity")
	}

	tr.SetACLConnected(true)
	if !tr.ACLConnected() {
		t.Fatal("ACLConnected should reflect SetACLConnected(true)")
	}
}

func TestUnpairClearsBothSignals(t *testing.T) {
	tr := NewTracker()
	tr.Pair("AA:BB:CC:DD:EE:FF", "phone", LinkClassic)
	tr.SetACLConnected(true)

	tr.Unpair()

	if tr.Paired() {
		t.Fatal("Unpair should clear Paired()")
	}
	if tr.ACLConnected() {
		t.Fatal("Unpair should clear ACLConnected()")
	}
}

func TestIsCompanionMatchesAddress(t *testing.T) {
	tr := NewTracker()
	tr.Pair("11:22:33:44:55:66", "phone", LinkBLE)

	if !tr.IsCompanion("11:22:33:44:55:66") {
		t.Fatal("IsCompanion should match the paired address")
	}
	if tr.IsCompanion("FF:FF:FF:FF:FF:FF") {
		t.Fatal("IsCompanion should not match an unrelated address")
	}
}

func TestSetBondStateRequiresPairedDevice(t *testing.T) {
	tr := NewTracker()
	tr.SetBondState(BondBonded) // no device yet, must not panic

	tr.Pair("11:22:33:44:55:66", "phone", LinkBLE)
	tr.SetBondState(BondBonding)

	d, ok := tr.Device()
	if !ok || d.BondState != BondBonding {
		t.Fatalf("Device() = %+v, %v, want BondBonding", d, ok)
	}
}
