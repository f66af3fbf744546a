// Package variables implements the per-request variable generator (C1):
// one concrete JSON value per declared VariableSpec, memoized for the
// lifetime of a single request so repeated placeholders resolve
// identically (§8 invariant 6).
package variables

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/nugget-labs/nugget/internal/apperror"
	"github.com/nugget-labs/nugget/internal/config"
)

// defaultIntegerMax matches §9 Open Question (a): unsigned 32-bit range
// when min/max are not given.
const defaultIntegerMax = (1 << 32) - 1

// Generate produces one value per entry in specs. The random source
// (math/rand/v2's package-level functions) is safe for concurrent use
// across request goroutines, matching the §5 requirement that C1's only
// shared state — the random source — be thread-safe.
func Generate(specs map[string]config.VariableSpec) (map[string]any, error) {
	out := make(map[string]any, len(specs))

	for name, spec := range specs {
		val, err := generateOne(spec)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		out[name] = val
	}

	return out, nil
}

func generateOne(spec config.VariableSpec) (any, error) {
	switch spec.Type {
	case config.VariableUUID:
		return uuid.New().String(), nil

	case config.VariableInteger:
		return generateInteger(spec)

	case config.VariableString:
		n := rand.Int64N(1 << 31)
		prefix := ""
		if spec.Prefix != nil {
			prefix = *spec.Prefix
		}
		return fmt.Sprintf("%sgenerated_%d", prefix, n), nil

	default:
		return nil, fmt.Errorf("unknown variable type %q", spec.Type)
	}
}

func generateInteger(spec config.VariableSpec) (any, error) {
	min, max := int64(0), int64(defaultIntegerMax)
	if spec.Min != nil {
		min = *spec.Min
	}
	if spec.Max != nil {
		max = *spec.Max
	}
	if min > max {
		return nil, apperror.New(apperror.KindInvalidVariableRange,
			fmt.Sprintf("min (%d) > max (%d)", min, max))
	}
	span := max - min + 1
	return min + rand.Int64N(span), nil
}
