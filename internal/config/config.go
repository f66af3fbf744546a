// Package config loads and validates the Nugget route-table configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/rakunlabs/tell"
	"gopkg.in/yaml.v3"
)

var Service = ""

// identifierPattern matches the identifier grammar used throughout the
// placeholder grammar: [A-Za-z_][A-Za-z0-9_]*
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Reserved method+path for the state-administration endpoint (§4.8).
const (
	ReservedAdminMethod = "POST"
	ReservedAdminPath   = "/state/clear"
)

// Config is the root of the YAML configuration tree.
type Config struct {
	Routes []Route `yaml:"routes"`

	// Defaults is consulted by {payload.field} resolution when the
	// incoming payload omits that field.
	Defaults map[string]any `yaml:"defaults"`

	// Telemetry is an optional observability knob, carried as ambient
	// config even though the core pipeline does not emit metrics itself.
	Telemetry tell.Config `yaml:"telemetry"`

	// unknownKeys holds the unrecognized top-level keys detected during
	// Load, purely for the startup warning.
	unknownKeys []string
}

// Route is one configuration entry in the route table.
type Route struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`

	ObjectName string `yaml:"object_name"`

	// StoreObject defaults to true when ObjectName is set (§3, (b)).
	StoreObject *bool `yaml:"store_object"`

	Variables map[string]VariableSpec `yaml:"variables"`

	Response  *ResponseTemplate `yaml:"response"`
	LuaScript string            `yaml:"lua_script"`
}

// ShouldStore reports whether a successful render on this route should be
// inserted into the object store.
func (r Route) ShouldStore() bool {
	if r.ObjectName == "" {
		return false
	}
	if r.StoreObject == nil {
		return true
	}
	return *r.StoreObject
}

// IsScript reports whether this route is rendered via the script path.
func (r Route) IsScript() bool {
	return r.LuaScript != ""
}

// VariableType enumerates the supported VariableSpec.Type values.
type VariableType string

const (
	VariableUUID    VariableType = "uuid"
	VariableInteger VariableType = "integer"
	VariableString  VariableType = "string"
)

// VariableSpec describes one declared per-request generated variable.
type VariableSpec struct {
	Type    VariableType `yaml:"type"`
	Prefix  *string      `yaml:"prefix"`
	Min     *int64       `yaml:"min"`
	Max     *int64       `yaml:"max"`
	Default any          `yaml:"default"`
}

// ResponseTemplate is the static shape of a template-path route.
type ResponseTemplate struct {
	Status int `yaml:"status"`
	Body   any `yaml:"body"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	for key := range raw {
		switch key {
		case "routes", "defaults", "telemetry":
		default:
			cfg.unknownKeys = append(cfg.unknownKeys, key)
		}
	}
	for _, key := range cfg.unknownKeys {
		slog.Warn("unknown top-level configuration key", "key", key)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for i, route := range cfg.Routes {
		slog.Info("loaded route",
			"method", route.Method,
			"path", route.Path,
			"kind", routeKind(route),
			"object_name", route.ObjectName,
			"store_object", route.ShouldStore(),
			"index", i,
		)
	}

	return &cfg, nil
}

func routeKind(r Route) string {
	if r.IsScript() {
		return "script"
	}
	return "template"
}

// Validate checks the structural invariants of the configuration that
// must hold before the server starts: every route names exactly one of
// response/lua_script, object_name (when set) is a valid identifier, and
// no route collides with the reserved /state/clear admin endpoint.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Routes))

	for i, route := range c.Routes {
		switch route.Method {
		case "GET", "POST", "PUT", "DELETE", "PATCH":
		default:
			return fmt.Errorf("route %d: invalid method %q", i, route.Method)
		}

		if route.Path == "" || route.Path[0] != '/' {
			return fmt.Errorf("route %d: path must start with '/', got %q", i, route.Path)
		}

		hasResponse := route.Response != nil
		hasScript := route.LuaScript != ""
		if hasResponse == hasScript {
			return fmt.Errorf("route %d (%s %s): exactly one of response or lua_script must be set", i, route.Method, route.Path)
		}

		if route.ObjectName != "" && !identifierPattern.MatchString(route.ObjectName) {
			return fmt.Errorf("route %d (%s %s): object_name %q is not a valid identifier", i, route.Method, route.Path, route.ObjectName)
		}

		for name, v := range route.Variables {
			if !identifierPattern.MatchString(name) {
				return fmt.Errorf("route %d (%s %s): variable name %q is not a valid identifier", i, route.Method, route.Path, name)
			}
			switch v.Type {
			case VariableUUID, VariableInteger, VariableString:
			default:
				return fmt.Errorf("route %d (%s %s): variable %q has unknown type %q", i, route.Method, route.Path, name, v.Type)
			}
			// min > max is NOT rejected here: §7 surfaces it as
			// InvalidVariableRange, a request-time HTTP 500 raised by
			// the variable generator on every hit of the faulty route.
			warnIgnoredParams(route, name, v)
		}

		if route.Method == ReservedAdminMethod && route.Path == ReservedAdminPath {
			return fmt.Errorf("route %d: %s %s is reserved for state administration", i, ReservedAdminMethod, ReservedAdminPath)
		}

		key := route.Method + " " + route.Path
		if seen[key] {
			return fmt.Errorf("route %d: duplicate route %s", i, key)
		}
		seen[key] = true
	}

	return nil
}

// warnIgnoredParams emits one warning per extraneous VariableSpec field
// that does not apply to the chosen type (§4.1).
func warnIgnoredParams(route Route, name string, v VariableSpec) {
	warn := func(field string) {
		slog.Warn("ignored variable parameter for type",
			"route", route.Method+" "+route.Path,
			"variable", name,
			"type", v.Type,
			"field", field,
		)
	}

	switch v.Type {
	case VariableUUID:
		if v.Prefix != nil {
			warn("prefix")
		}
		if v.Min != nil {
			warn("min")
		}
		if v.Max != nil {
			warn("max")
		}
		if v.Default != nil {
			warn("default")
		}
	case VariableInteger:
		if v.Prefix != nil {
			warn("prefix")
		}
	case VariableString:
		if v.Min != nil {
			warn("min")
		}
		if v.Max != nil {
			warn("max")
		}
	}
}
