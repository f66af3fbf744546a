// Package render implements the template engine (C5): a depth-first walk
// of a JSON-shaped response template that substitutes every `{...}`
// placeholder via the reference resolver (C4).
package render

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nugget-labs/nugget/internal/apperror"
	"github.com/nugget-labs/nugget/internal/placeholder"
)

// Render walks node depth-first, substituting placeholders in every
// string leaf per §4.5. Object keys are never templated. The only
// error this returns is apperror with KindTemplateSyntaxError.
func Render(node any, env placeholder.Env) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			rendered, err := Render(child, env)
			if err != nil {
				return nil, err
			}
			out[key] = rendered
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			rendered, err := Render(child, env)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil

	case string:
		return renderString(v, env)

	default:
		// number, bool, null: copied verbatim.
		return v, nil
	}
}

// span marks one top-level `{...}` occurrence in a template string, with
// start/end pointing at the opening and closing brace respectively.
type span struct {
	start, end int
}

// renderString scans s for placeholders and substitutes them. A string
// whose entire content is one placeholder yields the typed resolved
// value (§4.4 type preservation rule); otherwise each placeholder is
// replaced by its stringified form within the surrounding text.
func renderString(s string, env placeholder.Env) (any, error) {
	spans, err := scanPlaceholders(s)
	if err != nil {
		return nil, apperror.New(apperror.KindTemplateSyntaxError, err.Error())
	}
	if len(spans) == 0 {
		return s, nil
	}

	if len(spans) == 1 && spans[0].start == 0 && spans[0].end == len(s)-1 {
		content := s[1 : len(s)-1]
		val, unknown, err := resolveContent(content, env)
		if err != nil {
			return nil, err
		}
		if unknown {
			slog.Warn("unresolved placeholder reference", "placeholder", content)
			return nil, nil
		}
		return val, nil
	}

	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(s[last:sp.start])

		content := s[sp.start+1 : sp.end]
		val, unknown, err := resolveContent(content, env)
		if err != nil {
			return nil, err
		}
		if unknown {
			slog.Warn("unresolved placeholder reference", "placeholder", content)
			b.WriteString(s[sp.start : sp.end+1])
		} else {
			b.WriteString(stringify(val))
		}

		last = sp.end + 1
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

func resolveContent(content string, env placeholder.Env) (value any, unknown bool, err error) {
	expr, err := placeholder.Parse(content)
	if err != nil {
		return nil, false, apperror.New(apperror.KindTemplateSyntaxError, err.Error())
	}
	val, unknown, err := placeholder.Resolve(expr, env)
	if err != nil {
		return nil, false, apperror.New(apperror.KindTemplateSyntaxError, err.Error())
	}
	return val, unknown, nil
}

// scanPlaceholders finds every top-level `{...}` span in s, tracking
// brace depth so the one level of nested `{...}` permitted inside an
// id_expr's `[...]` (§4.4) does not split a placeholder prematurely.
func scanPlaceholders(s string) ([]span, error) {
	var spans []span
	i := 0
	for i < len(s) {
		switch s[i] {
		case '{':
			depth := 1
			j := i + 1
			for j < len(s) && depth > 0 {
				switch s[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				j++
			}
			if depth != 0 {
				return nil, fmt.Errorf("unbalanced '{' at offset %d", i)
			}
			spans = append(spans, span{start: i, end: j - 1})
			i = j
		case '}':
			return nil, fmt.Errorf("unbalanced '}' at offset %d", i)
		default:
			i++
		}
	}
	return spans, nil
}

// stringify renders a resolved value for embedding in surrounding text:
// native string form for scalars, JSON encoding for everything else.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
