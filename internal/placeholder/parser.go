package placeholder

import (
	"fmt"
	"strings"
)

// Parse parses the content between `{` and `}` into an Expr. content must
// not include the surrounding braces.
func Parse(content string) (*Expr, error) {
	if content == "" {
		return nil, fmt.Errorf("empty placeholder")
	}

	if rest, ok := cutPrefix(content, "objects."); ok {
		ref, err := parseObjectsRef(rest)
		if err != nil {
			return nil, err
		}
		return &Expr{Objects: ref}, nil
	}

	return parseSimple(content)
}

// parseSimple parses the `simple` production: payload.*, path.*, or a
// bare variable identifier.
func parseSimple(content string) (*Expr, error) {
	if rest, ok := cutPrefix(content, "payload."); ok {
		path, err := parseFieldPath(rest)
		if err != nil {
			return nil, fmt.Errorf("payload reference: %w", err)
		}
		return &Expr{PayloadPath: path}, nil
	}

	if rest, ok := cutPrefix(content, "path."); ok {
		if !isIdentifier(rest) {
			return nil, fmt.Errorf("path reference: %q is not a valid identifier", rest)
		}
		return &Expr{PathParam: rest}, nil
	}

	if !isIdentifier(content) {
		return nil, fmt.Errorf("%q is not a valid variable identifier", content)
	}
	return &Expr{Var: content}, nil
}

// parseObjectsRef parses everything after "objects." — type_name,
// optional "[" id_expr "]", optional "." field_path.
func parseObjectsRef(rest string) (*ObjectsRef, error) {
	i := 0
	for i < len(rest) && isIdentChar(rest[i], i == 0) {
		i++
	}
	typeName := rest[:i]
	if typeName == "" {
		return nil, fmt.Errorf("objects reference: missing type name")
	}

	ref := &ObjectsRef{TypeName: typeName}
	rest = rest[i:]

	if rest == "" {
		return ref, nil
	}

	if rest[0] == '[' {
		idExpr, remainder, err := parseIDExpr(rest)
		if err != nil {
			return nil, err
		}
		ref.ID = idExpr
		rest = remainder
	}

	if rest == "" {
		return ref, nil
	}

	if rest[0] != '.' {
		return nil, fmt.Errorf("objects reference: unexpected characters %q", rest)
	}

	path, err := parseFieldPath(rest[1:])
	if err != nil {
		return nil, fmt.Errorf("objects reference: %w", err)
	}
	ref.FieldPath = path

	return ref, nil
}

// parseIDExpr parses a leading "[...]" from s (s[0] == '['), returning
// the parsed IDExpr and the remainder of s after the closing "]".
func parseIDExpr(s string) (*IDExpr, string, error) {
	if s[0] != '[' {
		return nil, s, fmt.Errorf("expected '['")
	}
	body := s[1:]

	if strings.HasPrefix(body, "{") {
		depth := 0
		end := -1
		for i := 0; i < len(body); i++ {
			switch body[i] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					end = i
				}
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 {
			return nil, "", fmt.Errorf("unbalanced '{' inside id expression")
		}
		inner := body[1:end]
		nested, err := parseSimple(inner)
		if err != nil {
			return nil, "", fmt.Errorf("nested id expression: %w", err)
		}

		after := body[end+1:]
		if !strings.HasPrefix(after, "]") {
			return nil, "", fmt.Errorf("expected ']' after nested id expression")
		}
		return &IDExpr{Nested: nested}, after[1:], nil
	}

	closeIdx := strings.IndexByte(body, ']')
	if closeIdx < 0 {
		return nil, "", fmt.Errorf("unbalanced '[' — missing ']'")
	}
	literal := body[:closeIdx]
	return &IDExpr{Literal: literal}, body[closeIdx+1:], nil
}

// parseFieldPath parses a dot-separated sequence of identifiers.
func parseFieldPath(s string) ([]string, error) {
	if s == "" {
		return nil, fmt.Errorf("empty field path")
	}
	parts := strings.Split(s, ".")
	for _, p := range parts {
		if !isIdentifier(p) {
			return nil, fmt.Errorf("%q is not a valid identifier", p)
		}
	}
	return parts, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentChar(s[i], i == 0) {
			return false
		}
	}
	return true
}

func isIdentChar(c byte, first bool) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c == '_':
		return true
	case c >= '0' && c <= '9':
		return !first
	default:
		return false
	}
}

// cutPrefix is strings.CutPrefix, spelled out for clarity at call sites.
func cutPrefix(s, prefix string) (string, bool) {
	return strings.CutPrefix(s, prefix)
}
