package pipeline

import (
	"strings"

	"github.com/nugget-labs/nugget/internal/config"
)

// Matcher resolves (method, path) pairs against a configured route table.
// Matching precedence (§6): literal-segment matches outrank `{name}`
// matches; ties within the same precedence resolve to first-declared.
type Matcher struct {
	routes []config.Route
}

// NewMatcher builds a Matcher over routes, preserving declaration order
// so ties resolve to the first-declared route.
func NewMatcher(routes []config.Route) *Matcher {
	return &Matcher{routes: routes}
}

// Match finds the best route for method and path. ok is false when no
// route matches, which the pipeline surfaces as RouteNotFound.
func (m *Matcher) Match(method, path string) (route config.Route, params map[string]string, ok bool) {
	reqSegs := splitPath(path)

	bestScore := -1
	for _, candidate := range m.routes {
		if candidate.Method != method {
			continue
		}

		candidateSegs := splitPath(candidate.Path)
		if len(candidateSegs) != len(reqSegs) {
			continue
		}

		candidateParams, score, matched := matchSegments(candidateSegs, reqSegs)
		if !matched {
			continue
		}

		// Strictly greater so the first-declared route among equal
		// scores is kept (we never overwrite on a tie).
		if score > bestScore {
			bestScore = score
			route = candidate
			params = candidateParams
			ok = true
		}
	}

	return route, params, ok
}

// matchSegments compares a route's path segments against a request's,
// binding `{name}` segments into params and scoring one point per
// literal match.
func matchSegments(routeSegs, reqSegs []string) (params map[string]string, score int, matched bool) {
	params = make(map[string]string, len(routeSegs))

	for i, seg := range routeSegs {
		if isParamSegment(seg) {
			params[seg[1:len(seg)-1]] = reqSegs[i]
			continue
		}
		if seg != reqSegs[i] {
			return nil, 0, false
		}
		score++
	}

	return params, score, true
}

func isParamSegment(seg string) bool {
	return len(seg) >= 2 && seg[0] == '{' && seg[len(seg)-1] == '}'
}

// splitPath normalizes a path into its non-empty segments; "/" and ""
// both yield zero segments so the root path matches consistently.
func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return []string{}
	}
	return strings.Split(p, "/")
}
