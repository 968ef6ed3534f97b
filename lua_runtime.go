// lua_runtime.go: Sandboxed Lua states backing module evaluation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultEvalTimeout bounds the evaluation of a single module chunk or hook call.
const DefaultEvalTimeout = 5 * time.Second

// newSandboxedState creates a Lua state with only the safe standard libraries.
// io, os, debug and package are never opened: modules cannot reach the file
// system or load code outside their archive.
func newSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	// dofile and loadfile are part of the base library but read from disk.
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	return L
}

// evalChunk compiles and runs source in L and returns the single value it returns.
func evalChunk(L *lua.LState, name, source string, timeout time.Duration) (ret lua.LValue, err error) {
	fn, err := L.Load(strings.NewReader(source), name)
	if err != nil {
		return lua.LNil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			ret, err = lua.LNil, fmt.Errorf("lua panic: %v", r)
		}
	}()

	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return lua.LNil, err
	}
	ret = L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// callMethod invokes table[method](table, args...) when the method exists.
// The bool result reports whether the method was found.
func callMethod(L *lua.LState, self *lua.LTable, method string, timeout time.Duration, args ...lua.LValue) (found bool, err error) {
	fn, ok := L.GetField(self, method).(*lua.LFunction)
	if !ok {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic in %s: %v", method, r)
		}
	}()

	callArgs := make([]lua.LValue, 0, len(args)+1)
	callArgs = append(callArgs, self)
	callArgs = append(callArgs, args...)
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, callArgs...); err != nil {
		return true, err
	}
	return true, nil
}

// stringList converts a Lua array of strings; non-string items are skipped.
func stringList(v lua.LValue) []string {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	out := make([]string, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		if s, ok := tbl.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// stringMap converts a Lua table with string keys into a map of string values.
func stringMap(v lua.LValue) map[string]string {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	out := make(map[string]string)
	tbl.ForEach(func(k, val lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			out[string(ks)] = val.String()
		}
	})
	return out
}

// stringArgs converts start arguments into a Lua array.
func stringArgs(L *lua.LState, args []string) *lua.LTable {
	tbl := L.CreateTable(len(args), 0)
	for _, a := range args {
		tbl.Append(lua.LString(a))
	}
	return tbl
}
