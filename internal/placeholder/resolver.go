package placeholder

import (
	"fmt"

	"github.com/nugget-labs/nugget/internal/objectstore"
)

// Env is the resolution environment: the per-request bundle of generated
// variables, parsed payload, path parameters, and the object store.
// Store is the live store, not a snapshot: each objects placeholder
// reads it under its own read lock, so two placeholders in one render
// can observe different store contents if a write lands in between.
type Env struct {
	Vars       map[string]any
	Payload    any
	PathParams map[string]string
	Defaults   map[string]any
	Store      *objectstore.Store
}

// Resolve evaluates expr against env. unknown is true when expr named an
// undeclared variable or path parameter — the §4.4 failure policy case
// that the template engine turns into null (standalone) or literal text
// (embedded), with a warning. err is non-nil for the grammar violation
// described in §4.4 (a nested id expression that resolves to a
// non-scalar value) and for an Expr with none of its shapes set.
func Resolve(expr *Expr, env Env) (value any, unknown bool, err error) {
	switch {
	case expr.Var != "":
		v, ok := env.Vars[expr.Var]
		if !ok {
			return nil, true, nil
		}
		return v, false, nil

	case expr.PayloadPath != nil:
		return walkPayload(env.Payload, expr.PayloadPath, env.Defaults), false, nil

	case expr.PathParam != "":
		v, ok := env.PathParams[expr.PathParam]
		if !ok {
			return nil, true, nil
		}
		return v, false, nil

	case expr.Objects != nil:
		return resolveObjects(expr.Objects, env)

	default:
		return nil, true, fmt.Errorf("empty placeholder expression")
	}
}

func resolveObjects(ref *ObjectsRef, env Env) (any, bool, error) {
	if env.Store == nil {
		return nil, false, nil
	}

	if ref.ID == nil {
		if ref.FieldPath == nil {
			return toAnySlice(env.Store.GetAll(ref.TypeName)), false, nil
		}
		return env.Store.GetFieldAcross(ref.TypeName, ref.FieldPath...), false, nil
	}

	id, ok, err := resolveID(ref.ID, env)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		// §9 Open Question (c): empty/unresolved nested id is treated
		// as a not-found lookup, never an error.
		return nil, false, nil
	}

	if ref.FieldPath == nil {
		obj, found := env.Store.GetByID(ref.TypeName, id)
		if !found {
			return nil, false, nil
		}
		return toAnyMap(obj), false, nil
	}

	val, found := env.Store.GetFieldOf(ref.TypeName, id, ref.FieldPath...)
	if !found {
		return nil, false, nil
	}
	return val, false, nil
}

// resolveID resolves an IDExpr to a concrete string id. ok is false when
// the nested placeholder resolved to an empty or unknown value — treated
// as a not-found lookup rather than an error.
func resolveID(idExpr *IDExpr, env Env) (string, bool, error) {
	if idExpr.Nested == nil {
		return idExpr.Literal, true, nil
	}

	val, unknown, err := Resolve(idExpr.Nested, env)
	if err != nil {
		return "", false, err
	}
	if unknown || val == nil {
		return "", false, nil
	}

	switch v := val.(type) {
	case string:
		if v == "" {
			return "", false, nil
		}
		return v, true, nil
	case map[string]any, []any:
		return "", false, fmt.Errorf("nested id expression must evaluate to a scalar, got %T", v)
	default:
		return fmt.Sprintf("%v", v), true, nil
	}
}

func toAnySlice(objs []map[string]any) []any {
	out := make([]any, len(objs))
	for i, o := range objs {
		out[i] = toAnyMap(o)
	}
	return out
}

func toAnyMap(m map[string]any) map[string]any {
	return m
}

// walkPayload walks a dotted path into a parsed JSON payload. A missing
// key at any depth falls back to defaults[lastKey] if present, else null.
func walkPayload(root any, path []string, defaults map[string]any) any {
	cur := root
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return defaultOrNull(path, defaults)
		}
		v, present := m[key]
		if !present {
			return defaultOrNull(path, defaults)
		}
		cur = v
	}
	return cur
}

func defaultOrNull(path []string, defaults map[string]any) any {
	if len(path) == 0 || defaults == nil {
		return nil
	}
	if d, ok := defaults[path[len(path)-1]]; ok {
		return d
	}
	return nil
}
