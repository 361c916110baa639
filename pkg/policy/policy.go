// Package policy evaluates the two scriptable decision points the
// specification carves out of the otherwise fixed mediator rules: which
// radios an active activity mode affects, and whether time-only mode
// should currently suppress network radios. A StaticEngine supplies the
// fixed defaults; a LuaEngine lets an operator override them with a
// small script, mirroring the teacher's message-rule scripting engine.
package policy

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/wearos/connsupervisor/pkg/radio"
)

// Engine is the policy evaluation surface the controller and
// mediators consult.
type Engine interface {
	// ActivityAffectedRadios returns which radios the given activity
	// mode name should power off while active.
	ActivityAffectedRadios(activityMode string) []radio.Kind
	// TimeOnlyMode reports whether time-only mode is currently active
	// given the watch face's declared capability.
	TimeOnlyMode(faceSupportsTimeOnly bool) bool
	// Close releases any resources held by the engine.
	Close() error
}

// StaticEngine implements the specification's built-in defaults: every
// activity mode affects all three radios, and time-only mode is never
// entered automatically.
type StaticEngine struct{}

// NewStaticEngine creates the default engine.
func NewStaticEngine() StaticEngine { return StaticEngine{} }

// ActivityAffectedRadios implements Engine.
func (StaticEngine) ActivityAffectedRadios(activityMode string) []radio.Kind {
	if activityMode == "" {
		return nil
	}
	return []radio.Kind{radio.BT, radio.WIFI, radio.CELL}
}

// TimeOnlyMode implements Engine.
func (StaticEngine) TimeOnlyMode(faceSupportsTimeOnly bool) bool { return false }

// Close implements Engine.
func (StaticEngine) Close() error { return nil }

// LuaEngine evaluates activity_affected_radios(mode) and
// time_only_mode(face_supports) Lua globals, falling back to
// StaticEngine defaults when a script omits either function.
type LuaEngine struct {
	mu       sync.Mutex
	l        *lua.LState
	fallback StaticEngine
}

// NewLuaEngine loads scriptPath and returns a ready engine.
func NewLuaEngine(scriptPath string) (*LuaEngine, error) {
	l := lua.NewState()
	l.OpenLibs()

	if err := l.DoFile(scriptPath); err != nil {
		l.Close()
		return nil, fmt.Errorf("load policy script %s: %w", scriptPath, err)
	}

	return &LuaEngine{l: l}, nil
}

// ActivityAffectedRadios implements Engine.
func (e *LuaEngine) ActivityAffectedRadios(activityMode string) []radio.Kind {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.l.GetGlobal("activity_affected_radios")
	if fn.Type() != lua.LTFunction {
		return e.fallback.ActivityAffectedRadios(activityMode)
	}

	e.l.Push(fn)
	e.l.Push(lua.LString(activityMode))
	if err := e.l.PCall(1, 1, nil); err != nil {
		return e.fallback.ActivityAffectedRadios(activityMode)
	}
	ret := e.l.Get(-1)
	e.l.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return e.fallback.ActivityAffectedRadios(activityMode)
	}

	var radios []radio.Kind
	tbl.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			radios = append(radios, radio.Kind(s))
		}
	})
	return radios
}

// TimeOnlyMode implements Engine.
func (e *LuaEngine) TimeOnlyMode(faceSupportsTimeOnly bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.l.GetGlobal("time_only_mode")
	if fn.Type() != lua.LTFunction {
		return e.fallback.TimeOnlyMode(faceSupportsTimeOnly)
	}

	e.l.Push(fn)
	e.l.Push(lua.LBool(faceSupportsTimeOnly))
	if err := e.l.PCall(1, 1, nil); err != nil {
		return e.fallback.TimeOnlyMode(faceSupportsTimeOnly)
	}
	ret := e.l.Get(-1)
	e.l.Pop(1)

	b, ok := ret.(lua.LBool)
	if !ok {
		return e.fallback.TimeOnlyMode(faceSupportsTimeOnly)
	}
	return bool(b)
}

// Close implements Engine.
func (e *LuaEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.l.Close()
	return nil
}
