// Package placeholder implements the reference resolver (C4): parsing a
// `{...}` placeholder expression into a small AST and evaluating it
// against a per-request resolution environment plus the object store.
package placeholder

// Expr is the parsed form of one placeholder expression — the content
// between `{` and `}`. Exactly one of the concrete shapes below is set.
type Expr struct {
	// Var names a generated variable (§4.1) to look up directly.
	Var string

	// PayloadPath is the dotted field_path after "payload.".
	PayloadPath []string

	// PathParam is the identifier after "path.".
	PathParam string

	// Objects is set when this placeholder is an objects_ref.
	Objects *ObjectsRef
}

// ObjectsRef is the parsed form of an `objects.T[...].field` reference.
type ObjectsRef struct {
	TypeName string

	// ID is the id_expr inside `[...]`, or nil when no index was given
	// (i.e. `{objects.T}` / `{objects.T.field}`).
	ID *IDExpr

	// FieldPath is the dotted field_path after the type/index, or nil
	// when absent.
	FieldPath []string
}

// IDExpr is either a literal id or one nested placeholder to resolve
// first (§4.4: "Nested substitution inside [...] is resolved first").
type IDExpr struct {
	Literal string
	Nested  *Expr
}
