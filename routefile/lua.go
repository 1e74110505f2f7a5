package routefile

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/vitalvas/waypoint/route"
)

// luaEnv runs the Lua predicates of one table. LState is not goroutine
// safe, so every call holds mu.
type luaEnv struct {
	mu     sync.Mutex
	L      *lua.LState
	logger *slog.Logger
	closed bool
}

func newLuaEnv(logger *slog.Logger) *luaEnv {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	// no io, os, debug or package
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	return &luaEnv{L: L, logger: logger}
}

// compile turns body into a predicate. body runs with the remaining path
// bound to `remaining` and returns the consumed prefix, or nil when the
// route does not match.
func (e *luaEnv) compile(name, body string) (route.PredicateFunc, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	src := "return function(remaining)\n" + body + "\nend"

	chunk, err := e.L.LoadString(src)
	if err != nil {
		return nil, fmt.Errorf("compiling lua: %w", err)
	}

	e.L.Push(chunk)
	if err := e.L.PCall(0, 1, nil); err != nil {
		return nil, fmt.Errorf("loading lua: %w", err)
	}
	fn, ok := e.L.Get(-1).(*lua.LFunction)
	e.L.Pop(1)
	if !ok {
		return nil, errors.New("lua chunk did not produce a function")
	}

	return func(remaining string) (string, bool) {
		return e.call(name, fn, remaining)
	}, nil
}

func (e *luaEnv) call(name string, fn *lua.LFunction, remaining string) (seg string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return "", false
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("lua predicate panic", "route", name, "error", r)
			seg, ok = "", false
		}
	}()

	err := e.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LString(remaining))
	if err != nil {
		e.logger.Debug("lua predicate failed", "route", name, "error", err)
		return "", false
	}

	ret := e.L.Get(-1)
	e.L.Pop(1)

	s, isString := ret.(lua.LString)
	if !isString {
		return "", false
	}
	return string(s), true
}

func (e *luaEnv) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		e.L.Close()
	}
}
