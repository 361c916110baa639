package config

import "testing"

func TestDefaultPassesValidation(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Default() should validate, got: %v", err)
	}
}

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()

	if cfg.BTStateChangeDelayMs != 5000 {
		t.Errorf("BTStateChangeDelayMs = %d, want 5000", cfg.BTStateChangeDelayMs)
	}
	if cfg.OffBodyDelayMs != 10*60*1000 {
		t.Errorf("OffBodyDelayMs = %d, want 600000", cfg.OffBodyDelayMs)
	}
	if !cfg.OffBodyRadiosOffEnabled {
		t.Error("OffBodyRadiosOffEnabled should default true")
	}
}

func TestValidateRejectsOversizedDebounce(t *testing.T) {
	cfg := Default()
	cfg.BTStateChangeDelayMs = 60001

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for bt_state_change_delay_ms > 60000")
	}
}

func TestValidateRejectsMissingBluetoothUUIDs(t *testing.T) {
	cfg := Default()
	cfg.Bluetooth.ServiceUUID = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing service_uuid")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"

	cfg := Default()
	cfg.CellOn = false
	cfg.BTStateChangeDelayMs = 2500

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loaded.CellOn != false {
		t.Error("CellOn should round-trip as false")
	}
	if loaded.BTStateChangeDelayMs != 2500 {
		t.Errorf("BTStateChangeDelayMs = %d, want 2500", loaded.BTStateChangeDelayMs)
	}
}
