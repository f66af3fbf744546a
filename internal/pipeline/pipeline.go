// Package pipeline implements the request pipeline (C7): route
// matching, body parsing, dispatch to the script or template path, and
// response emission. It also implements the state-admin endpoint (C8).
package pipeline

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/nugget-labs/nugget/internal/apperror"
	"github.com/nugget-labs/nugget/internal/config"
	"github.com/nugget-labs/nugget/internal/objectstore"
	"github.com/nugget-labs/nugget/internal/placeholder"
	"github.com/nugget-labs/nugget/internal/render"
	"github.com/nugget-labs/nugget/internal/scriptrt"
	"github.com/nugget-labs/nugget/internal/scriptstate"
	"github.com/nugget-labs/nugget/internal/variables"
)

// Pipeline is the per-process request handler built from a loaded
// configuration and the two shared singletons (C2, C3).
type Pipeline struct {
	matcher  *Matcher
	defaults map[string]any
	objects  *objectstore.Store
	state    *scriptstate.Store
}

// New builds a Pipeline over cfg's route table, sharing objects and
// state with the rest of the process (including the admin endpoint).
func New(cfg *config.Config, objects *objectstore.Store, state *scriptstate.Store) *Pipeline {
	return &Pipeline{
		matcher:  NewMatcher(cfg.Routes),
		defaults: cfg.Defaults,
		objects:  objects,
		state:    state,
	}
}

// ServeHTTP implements the dispatch steps of §4.7.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, params, ok := p.matcher.Match(r.Method, r.URL.Path)
	if !ok {
		writeError(w, apperror.New(apperror.KindRouteNotFound, ""))
		return
	}

	payload, err := parseBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var status int
	var body any

	if route.IsScript() {
		result, err := scriptrt.Run(route.LuaScript, scriptrt.Request{
			Method:     r.Method,
			Path:       r.URL.Path,
			Headers:    r.Header,
			Body:       payload,
			PathParams: params,
		}, p.objects, p.state)
		if err != nil {
			writeError(w, err)
			return
		}
		status, body = result.Status, result.Body
	} else {
		vars, err := variables.Generate(route.Variables)
		if err != nil {
			writeError(w, err)
			return
		}

		env := placeholder.Env{
			Vars:       vars,
			Payload:    payload,
			PathParams: params,
			Defaults:   p.defaults,
			Store:      p.objects,
		}

		rendered, err := render.Render(route.Response.Body, env)
		if err != nil {
			writeError(w, err)
			return
		}

		status = route.Response.Status
		if status == 0 {
			status = http.StatusOK
		}
		body = rendered
	}

	if route.ShouldStore() {
		if obj, ok := body.(map[string]any); ok {
			p.objects.Put(route.ObjectName, obj)
		} else {
			slog.Warn("store_object route did not render a JSON object, skipping store",
				"route", route.Method+" "+route.Path)
		}
	}

	writeJSON(w, status, body)
}

// StateAdmin returns the C8 handler for POST /state/clear: it empties
// C2 and C3 with no intervening store mutation observable afterward.
func StateAdmin(objects *objectstore.Store, state *scriptstate.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		objects.Clear()
		state.Clear()
		writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
	}
}

// parseBody parses the request body as JSON per §4.7 step 2: a declared
// JSON content type that fails to parse is BadPayload; anything else
// that fails to parse is treated as an absent (null) payload.
func parseBody(r *http.Request) (any, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, apperror.New(apperror.KindBadPayload, "failed to read request body")
	}
	if len(data) == 0 {
		return nil, nil
	}

	declaresJSON := false
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			declaresJSON = mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
		}
	}

	var payload any
	if jsonErr := json.Unmarshal(data, &payload); jsonErr != nil {
		if declaresJSON {
			return nil, apperror.New(apperror.KindBadPayload, jsonErr.Error())
		}
		return nil, nil
	}
	return payload, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response body", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.New(apperror.KindScriptRuntimeError, err.Error())
	}
	if appErr.Kind == apperror.KindRouteNotFound {
		slog.Debug("no route matched", "detail", appErr.Message)
	} else {
		slog.Error("request failed", "kind", appErr.Kind, "detail", appErr.Message)
	}
	writeJSON(w, appErr.HTTPStatus(), appErr.Body())
}
