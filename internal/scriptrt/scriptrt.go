// Package scriptrt implements the script bridge (C6): it runs a route's
// lua_script source as Lua, via gopher-lua, exposing request, objects,
// and state to the script, and translates the returned table into the
// {status, body} contract the request pipeline expects.
package scriptrt

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nugget-labs/nugget/internal/apperror"
	"github.com/nugget-labs/nugget/internal/objectstore"
	"github.com/nugget-labs/nugget/internal/scriptstate"
)

// Request is the request-derived environment exposed to a script as the
// global `request` table.
type Request struct {
	Method     string
	Path       string
	Headers    http.Header
	Body       any
	PathParams map[string]string
}

// Result is the script's return value, translated into the pipeline's
// response contract.
type Result struct {
	Status int
	Body   any
}

// Run executes code as an isolated Lua VM invocation. A fresh *lua.LState
// is created per call: scripts do not share local variables across
// requests (§4.6), only state.* is persistent, backed by state.
func Run(code string, req Request, objects *objectstore.Store, state *scriptstate.Store) (Result, error) {
	L := lua.NewState()
	defer L.Close()

	L.SetGlobal("request", buildRequest(L, req))
	L.SetGlobal("objects", buildObjects(L, objects))
	L.SetGlobal("state", buildState(L, state))

	if err := L.DoString(code); err != nil {
		return Result{}, apperror.New(apperror.KindScriptRuntimeError, err.Error())
	}

	ret := L.Get(-1)
	L.Pop(1)

	return shape(ret)
}

// buildRequest builds the Lua-visible request table. Headers are keyed
// under their original casing, their canonical MIME casing, and their
// lowercase form, so table lookup is effectively case-insensitive
// regardless of how the script spells the header name (§4.6, and §9(d)
// which leaves exact case semantics to this implementation).
func buildRequest(L *lua.LState, req Request) *lua.LTable {
	headers := L.NewTable()
	for k, vs := range req.Headers {
		if len(vs) == 0 {
			continue
		}
		headers.RawSetString(k, lua.LString(vs[0]))
		headers.RawSetString(http.CanonicalHeaderKey(k), lua.LString(vs[0]))
		headers.RawSetString(strings.ToLower(k), lua.LString(vs[0]))
	}

	pathParams := L.NewTable()
	for k, v := range req.PathParams {
		pathParams.RawSetString(k, lua.LString(v))
	}

	out := L.NewTable()
	L.SetField(out, "method", lua.LString(req.Method))
	L.SetField(out, "path", lua.LString(req.Path))
	L.SetField(out, "headers", headers)
	L.SetField(out, "body", toLua(L, req.Body))
	L.SetField(out, "path_params", pathParams)
	return out
}

// buildObjects takes a single read snapshot of the object store — the
// "live, read-only snapshot at invocation time" contract of §4.6 — and
// exposes it as a table of type -> array-of-objects to the script.
func buildObjects(L *lua.LState, store *objectstore.Store) *lua.LTable {
	snap := store.Snapshot()
	out := L.NewTable()
	for typeName, items := range snap {
		arr := L.NewTable()
		for i, obj := range items {
			arr.RawSetInt(i+1, toLua(L, obj))
		}
		out.RawSetString(typeName, arr)
	}
	return out
}

// buildState wraps the shared ScriptState store (C3) as state.get /
// state.set Lua functions.
func buildState(L *lua.LState, state *scriptstate.Store) *lua.LTable {
	out := L.NewTable()
	L.SetField(out, "get", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		L.Push(toLua(L, state.Get(key)))
		return 1
	}))
	L.SetField(out, "set", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		var value any
		if L.GetTop() > 1 {
			v, err := fromLua(L.Get(2))
			if err != nil {
				L.RaiseError("state.set: %s", err.Error())
			}
			value = v
		}
		state.Set(key, value)
		return 0
	}))
	return out
}

// toLua converts a Go JSON value into the equivalent Lua value, building
// nested tables for maps and arrays.
func toLua(L *lua.LState, v any) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(t)
	case string:
		return lua.LString(t)
	case int:
		return lua.LNumber(t)
	case int64:
		return lua.LNumber(t)
	case float64:
		return lua.LNumber(t)
	case map[string]any:
		tbl := L.NewTable()
		for k, val := range t {
			tbl.RawSetString(k, toLua(L, val))
		}
		return tbl
	case []any:
		tbl := L.NewTable()
		for i, val := range t {
			tbl.RawSetInt(i+1, toLua(L, val))
		}
		return tbl
	default:
		return lua.LNil
	}
}

// shape validates the script's return value against the {status, body}
// contract (§4.6) and converts body into a JSON-representable value.
func shape(ret lua.LValue) (Result, error) {
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return Result{}, apperror.New(apperror.KindScriptReturnShape,
			fmt.Sprintf("script must return a table with status and body fields, got %s", ret.Type().String()))
	}

	status := 200
	if raw := tbl.RawGetString("status"); raw.Type() != lua.LTNil {
		n, ok := raw.(lua.LNumber)
		if !ok {
			return Result{}, apperror.New(apperror.KindScriptReturnShape, "status field must be a number")
		}
		status = int(n)
	}

	rawBody := tbl.RawGetString("body")
	if rawBody.Type() == lua.LTNil {
		return Result{}, apperror.New(apperror.KindScriptReturnShape, "missing body field")
	}

	body, err := fromLua(rawBody)
	if err != nil {
		return Result{}, apperror.New(apperror.KindScriptConversionError, err.Error())
	}

	return Result{Status: status, Body: body}, nil
}

// fromLua converts a Lua value returned by a script into a
// JSON-representable Go value, applying the table/object/array
// conversion rules of §4.6.
func fromLua(v lua.LValue) (any, error) {
	switch t := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(t), nil
	case lua.LString:
		return string(t), nil
	case lua.LNumber:
		return normalizeNumber(float64(t)), nil
	case *lua.LTable:
		return fromLuaTable(t)
	default:
		return nil, fmt.Errorf("value of type %s is not JSON-representable", v.Type().String())
	}
}

// normalizeNumber emits integers for whole numbers in the int64 range,
// matching the "numbers with a zero fractional part ... emitted as
// integers" rule of §4.6.
func normalizeNumber(f float64) any {
	if f == float64(int64(f)) {
		return int64(f)
	}
	return f
}

// tableEntry is one key/value pair of a Lua table, classified by whether
// its key is a positive integer (candidate array index) or not.
type tableEntry struct {
	isInt bool
	index int
	key   string
	value lua.LValue
}

// fromLuaTable applies §4.6's table conversion rule: a dense
// integer-keyed table starting at 1 becomes a JSON array; a purely
// string-keyed table becomes a JSON object; a table mixing integer and
// non-integer keys, or a sparse integer-keyed table, cannot be
// represented and is rejected.
func fromLuaTable(t *lua.LTable) (any, error) {
	var entries []tableEntry
	t.ForEach(func(k, v lua.LValue) {
		if n, ok := k.(lua.LNumber); ok {
			f := float64(n)
			if f == float64(int(f)) && f >= 1 {
				entries = append(entries, tableEntry{isInt: true, index: int(f), value: v})
				return
			}
			entries = append(entries, tableEntry{key: strconv.FormatFloat(f, 'g', -1, 64), value: v})
			return
		}
		entries = append(entries, tableEntry{key: k.String(), value: v})
	})

	if len(entries) == 0 {
		return map[string]any{}, nil
	}

	numericKeys := 0
	for _, e := range entries {
		if e.isInt {
			numericKeys++
		}
	}

	switch {
	case numericKeys == len(entries):
		indices := make([]int, len(entries))
		for i, e := range entries {
			indices[i] = e.index
		}
		sort.Ints(indices)
		for i, idx := range indices {
			if idx != i+1 {
				return nil, fmt.Errorf("non-dense integer-keyed table cannot be converted to a JSON array")
			}
		}
		arr := make([]any, len(entries))
		for _, e := range entries {
			c, err := fromLua(e.value)
			if err != nil {
				return nil, err
			}
			arr[e.index-1] = c
		}
		return arr, nil

	case numericKeys == 0:
		out := make(map[string]any, len(entries))
		for _, e := range entries {
			c, err := fromLua(e.value)
			if err != nil {
				return nil, err
			}
			out[e.key] = c
		}
		return out, nil

	default:
		return nil, fmt.Errorf("table mixes integer and string keys, cannot be converted to JSON")
	}
}
