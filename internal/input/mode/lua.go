package mode

import (
	"context"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/padstorm/internal/input/sample"
)

// LuaTimeout bounds a single Lua guard evaluation.
const LuaTimeout = 10 * time.Millisecond

// Lua compiles src into a guard. src is either an expression or a chunk that
// returns a value; the guard holds when the value is truthy. Runtime errors
// and timeouts evaluate to false.
//
// The chunk sees these globals:
//
//	state                 current state name
//	event                 table with kind, action, pattern and source
//	context               table of the machine's external context
//	pressed(action)       true while the action is held
//	just_pressed(action)  true on the press edge
//	value(action)         analog value of the action
//
// Only the base, string, math and table libraries are opened. The Lua state
// is created on first use and freed by Guard.Close or when every machine
// holding the guard is closed.
func Lua(name, src string) (Guard, error) {
	lg := &luaGuard{src: src}
	if err := lg.open(); err != nil {
		return Guard{}, &GuardError{Name: name, Err: err}
	}
	lg.closeState()
	return Guard{kind: GuardCustom, name: name, pred: lg.eval, res: lg}, nil
}

// luaGuard owns one Lua state. The state is opened on first evaluation and
// closed when the last machine holding the guard releases it.
type luaGuard struct {
	src string

	mu   sync.Mutex
	L    *lua.LState
	fn   *lua.LFunction
	env  Env
	refs int
}

func (lg *luaGuard) open() error {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}

	// Expression form first, then a full chunk.
	fn, err := L.LoadString("return " + lg.src)
	if err != nil {
		fn, err = L.LoadString(lg.src)
	}
	if err != nil {
		L.Close()
		return fmt.Errorf("%w: %v", ErrLuaCompile, err)
	}

	L.SetGlobal("pressed", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(lg.env.Snapshot.Action(actionArg(L)).Pressed))
		return 1
	}))
	L.SetGlobal("just_pressed", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(lg.env.Snapshot.Action(actionArg(L)).JustPressed))
		return 1
	}))
	L.SetGlobal("value", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(lg.env.Snapshot.Action(actionArg(L)).Value))
		return 1
	}))
	lg.L, lg.fn = L, fn
	return nil
}

func (lg *luaGuard) closeState() {
	if lg.L != nil {
		lg.L.Close()
		lg.L, lg.fn = nil, nil
	}
}

func (lg *luaGuard) retain() {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.refs++
}

func (lg *luaGuard) release() {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lg.refs > 0 {
		lg.refs--
	}
	if lg.refs == 0 {
		lg.closeState()
	}
}

func (lg *luaGuard) closeNow() {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.closeState()
}

// isOpen reports whether the guard currently holds a Lua state.
func (lg *luaGuard) isOpen() bool {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	return lg.L != nil
}

func (lg *luaGuard) eval(env Env) bool {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	if lg.L == nil {
		if err := lg.open(); err != nil {
			return false
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), LuaTimeout)
	defer cancel()
	lg.L.SetContext(ctx)
	defer lg.L.RemoveContext()

	lg.env = env
	lg.bind(env)

	lg.L.Push(lg.fn)
	if err := lg.L.PCall(0, 1, nil); err != nil {
		return false
	}
	ret := lg.L.Get(-1)
	lg.L.Pop(1)
	return lua.LVAsBool(ret)
}

func (lg *luaGuard) bind(env Env) {
	L := lg.L
	L.SetGlobal("state", lua.LString(env.State))

	ev := L.NewTable()
	ev.RawSetString("kind", lua.LString(env.Event.Kind.String()))
	ev.RawSetString("action", lua.LString(env.Event.Action))
	ev.RawSetString("pattern", lua.LString(env.Event.Pattern))
	ev.RawSetString("source", lua.LString(env.Event.Source.String()))
	L.SetGlobal("event", ev)

	ctx := L.NewTable()
	for k, v := range env.Context {
		ctx.RawSetString(string(k), lua.LString(v))
	}
	L.SetGlobal("context", ctx)
}

func actionArg(L *lua.LState) sample.ActionID {
	return sample.ActionID(L.CheckString(1))
}
