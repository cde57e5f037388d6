package config

import (
	lua "github.com/yuin/gopher-lua"
)

// sandboxLuaVM configures a Lua VM to run in a restricted sandbox.
// This disables functions that could:
// - Execute system commands (os.execute, os.exit)
// - Access the filesystem (io.open, io.popen)
// - Load external code (require, dofile, loadfile)
//
// Safe modules like string, table, and math are preserved, so a config
// stays declarative and cannot perform unsafe operations.
func sandboxLuaVM(L *lua.LState) {
	// Remove os library completely (os.execute, os.exit, os.getenv, etc.)
	L.SetGlobal("os", lua.LNil)

	// Remove io library completely (io.open, io.popen, io.read, etc.)
	L.SetGlobal("io", lua.LNil)

	// Remove package/module loading functions
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)

	// Remove debug library (could be used to bypass the sandbox)
	L.SetGlobal("debug", lua.LNil)
}

// newSandboxedVM creates a new Lua VM with sandboxing applied.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}

// injectPlatformTable exposes a read-only platform table to configs so
// one file can branch on OS, architecture, or distro family.
func injectPlatformTable(L *lua.LState, os, arch, family string) {
	platformTable := L.NewTable()

	L.SetField(platformTable, "os", lua.LString(os))
	L.SetField(platformTable, "arch", lua.LString(arch))

	L.SetField(platformTable, "is_linux", lua.LBool(os == "linux"))
	L.SetField(platformTable, "is_macos", lua.LBool(os == "darwin"))
	L.SetField(platformTable, "is_windows", lua.LBool(os == "windows"))

	if family != "" {
		L.SetField(platformTable, "linux_family", lua.LString(family))
	} else {
		L.SetField(platformTable, "linux_family", lua.LNil)
	}

	// Helper: platform.when(condition, value) returns value or nil, for
	// conditional list entries.
	L.SetField(platformTable, "when", L.NewFunction(func(L *lua.LState) int {
		cond := L.CheckBool(1)
		value := L.Get(2)
		if cond {
			L.Push(value)
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	L.SetGlobal("platform", makeReadOnly(L, platformTable))
}

// makeReadOnly wraps a table in a proxy whose metatable forwards reads
// and rejects all writes.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()

	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only and cannot be modified")
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)

	return proxy
}
