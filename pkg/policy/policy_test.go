package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wearos/connsupervisor/pkg/radio"
)

func TestStaticEngineDefaults(t *testing.T) {
	e := NewStaticEngine()

	radios := e.ActivityAffectedRadios("WORKOUT")
	if len(radios) != 3 {
		t.Fatalf("ActivityAffectedRadios() = %v, want all three radios", radios)
	}
	if e.ActivityAffectedRadios("") != nil {
		t.Fatal("empty activity mode should affect no radios")
	}
	if e.TimeOnlyMode(true) {
		t.Fatal("StaticEngine should never enter time-only mode")
	}
}

func TestLuaEngineOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "policy.lua")
	src := `
function activity_affected_radios(mode)
  if mode == "WORKOUT" then
    return {"BT"}
  end
  return {"BT", "WIFI", "CELL"}
end

function time_only_mode(face_supports)
  return face_supports
end
`
	if err := os.WriteFile(script, []byte(src), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	e, err := NewLuaEngine(script)
	if err != nil {
		t.Fatalf("NewLuaEngine: %v", err)
	}
	defer e.Close()

	radios := e.ActivityAffectedRadios("WORKOUT")
	if len(radios) != 1 || radios[0] != radio.BT {
		t.Fatalf("ActivityAffectedRadios(WORKOUT) = %v, want [BT]", radios)
	}

	if !e.TimeOnlyMode(true) {
		t.Fatal("TimeOnlyMode(true) should return true per script")
	}
	if e.TimeOnlyMode(false) {
		t.Fatal("TimeOnlyMode(false) should return false per script")
	}
}

func TestLuaEngineFallsBackWhenFunctionMissing(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "policy.lua")
	if err := os.WriteFile(script, []byte("-- empty script\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	e, err := NewLuaEngine(script)
	if err != nil {
		t.Fatalf("NewLuaEngine: %v", err)
	}
	defer e.Close()

	radios := e.ActivityAffectedRadios("WORKOUT")
	if len(radios) != 3 {
		t.Fatalf("ActivityAffectedRadios() = %v, want static fallback", radios)
	}
	if e.TimeOnlyMode(true) {
		t.Fatal("TimeOnlyMode should fall back to false when undefined")
	}
}
