package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM holding the balance formulas.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every .lua file in scriptsDir.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	for _, name := range []string{"level_for", "stats_for"} {
		if e.vm.GetGlobal(name) == lua.LNil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: lua function %s not defined", name)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LevelFor calls Lua level_for(exp).
func (e *Engine) LevelFor(exp int32) int32 {
	ret, err := e.call("level_for", 1, lua.LNumber(exp))
	if err != nil {
		return 1
	}
	lvl := clampInt32(float64(lua.LVAsNumber(ret[0])))
	if lvl < 1 {
		lvl = 1
	}
	return lvl
}

// MaxLevel reads the MAX_LEVEL global (1 if unset).
func (e *Engine) MaxLevel() int32 {
	v := int32(lua.LVAsNumber(e.vm.GetGlobal("MAX_LEVEL")))
	if v < 1 {
		return 1
	}
	return v
}

// Stats is the scaled stat block of a leveled unit.
type Stats struct {
	Speed  float64
	Damage int32
	MaxHP  int32
}

// StatsFor calls Lua stats_for(level, speed, damage, max_hp).
func (e *Engine) StatsFor(level int32, base Stats) Stats {
	ret, err := e.call("stats_for", 3,
		lua.LNumber(level), lua.LNumber(base.Speed), lua.LNumber(base.Damage), lua.LNumber(base.MaxHP))
	if err != nil {
		return base
	}
	return Stats{
		Speed:  float64(lua.LVAsNumber(ret[0])),
		Damage: clampInt32(float64(lua.LVAsNumber(ret[1]))),
		MaxHP:  clampInt32(float64(lua.LVAsNumber(ret[2]))),
	}
}

// call invokes a global Lua function and pops nret results.
func (e *Engine) call(name string, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		e.log.Error("lua function not found", zap.String("name", name))
		return nil, fmt.Errorf("lua function %s not found", name)
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    nret,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return nil, err
	}
	out := make([]lua.LValue, nret)
	for i := nret - 1; i >= 0; i-- {
		out[i] = e.vm.Get(-1)
		e.vm.Pop(1)
	}
	return out, nil
}

func clampInt32(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
