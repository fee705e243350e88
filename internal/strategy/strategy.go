package strategy

import (
	"fmt"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

// Strategy is the contract every trading strategy implements. The engine
// registers strategies by Name, drives Evaluate once per eligible tick,
// and delivers execution feedback through the On* hooks.
//
// Evaluate must not block and may only mutate the strategy's own internal
// state. A strategy must never call back into the engine from Evaluate:
// the engine holds the strategy's lock during the call.
type Strategy interface {
	// Name is the unique registry key for this strategy.
	Name() string

	// Initialize consumes the declared parameters from the config.
	// Returns an error wrapping domain.ErrInvalidInput on a bad type or
	// out-of-range value, which aborts registration.
	Initialize(cfg Config) error

	// Evaluate runs the strategy against a filtered context and returns
	// zero or more proposed signals.
	Evaluate(ctx *Context) []domain.Signal

	// OnSignalExecuted notifies that a signal from this strategy was
	// executed (or failed). Strategies update entry tracking here.
	OnSignalExecuted(sig domain.Signal, success bool)

	// OnOrderFilled notifies a fill of an order placed for this strategy.
	OnOrderFilled(orderID string, filledPrice, filledSize float64)

	// OnOrderCancelled notifies a cancellation.
	OnOrderCancelled(orderID string)

	// OnMarketUpdate notifies fresh market data outside the evaluation
	// cadence.
	OnMarketUpdate(ctx *Context)

	// Parameters returns the tunable parameter catalog.
	Parameters() map[string]ParamDef

	// SetParameter updates a single tunable. Returns an error wrapping
	// domain.ErrInvalidInput on unknown name or wrong type.
	SetParameter(name string, value ParamValue) error
}

// Config holds the per-registration settings of a strategy instance.
type Config struct {
	// Enabled gates evaluation; a registered but disabled strategy is
	// skipped without a status change.
	Enabled bool
	// AutoExecute controls whether approved signals are executed by the
	// pending-signal drain or only surfaced.
	AutoExecute bool
	// IncludeMarkets, when non-empty, restricts the visible context to
	// these market IDs.
	IncludeMarkets []string
	// ExcludeMarkets removes markets from the visible context.
	ExcludeMarkets []string
	// MinSignalIntervalSecs is the minimum spacing between evaluations.
	MinSignalIntervalSecs int
	// Parameters are strategy-specific tunables, validated by Initialize.
	Parameters map[string]any
}

// DefaultConfig returns an enabled, manual-execution config.
func DefaultConfig() Config {
	return Config{Enabled: true, Parameters: map[string]any{}}
}

// ParamType is the declared type of a tunable parameter.
type ParamType string

const (
	ParamInteger ParamType = "integer"
	ParamFloat   ParamType = "float"
	ParamDecimal ParamType = "decimal"
	ParamBoolean ParamType = "boolean"
	ParamString  ParamType = "string"
)

// ParamDef describes one tunable parameter of a strategy.
type ParamDef struct {
	Name        string
	Description string
	Type        ParamType
	Default     ParamValue
	Min         *ParamValue
	Max         *ParamValue
}

// ParamValue is a typed parameter value.
type ParamValue struct {
	kind ParamType
	i    int64
	f    float64
	b    bool
	s    string
}

// IntValue wraps an integer parameter value.
func IntValue(v int64) ParamValue { return ParamValue{kind: ParamInteger, i: v} }

// FloatValue wraps a float parameter value.
func FloatValue(v float64) ParamValue { return ParamValue{kind: ParamFloat, f: v} }

// DecimalValue wraps a decimal parameter value (stored as float64).
func DecimalValue(v float64) ParamValue { return ParamValue{kind: ParamDecimal, f: v} }

// BoolValue wraps a boolean parameter value.
func BoolValue(v bool) ParamValue { return ParamValue{kind: ParamBoolean, b: v} }

// StringValue wraps a string parameter value.
func StringValue(v string) ParamValue { return ParamValue{kind: ParamString, s: v} }

// Kind returns the declared type of the value.
func (v ParamValue) Kind() ParamType { return v.kind }

// AsInt returns the value as int64. Floats are truncated.
func (v ParamValue) AsInt() (int64, bool) {
	switch v.kind {
	case ParamInteger:
		return v.i, true
	case ParamFloat, ParamDecimal:
		return int64(v.f), true
	default:
		return 0, false
	}
}

// AsFloat returns the value as float64. Integers are widened.
func (v ParamValue) AsFloat() (float64, bool) {
	switch v.kind {
	case ParamFloat, ParamDecimal:
		return v.f, true
	case ParamInteger:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsBool returns the value as bool.
func (v ParamValue) AsBool() (bool, bool) {
	if v.kind != ParamBoolean {
		return false, false
	}
	return v.b, true
}

// AsString returns the value as string.
func (v ParamValue) AsString() (string, bool) {
	if v.kind != ParamString {
		return "", false
	}
	return v.s, true
}

// Base provides no-op implementations of the optional hooks so concrete
// strategies only override what they use.
type Base struct{}

func (Base) OnSignalExecuted(domain.Signal, bool) {}
func (Base) OnOrderFilled(string, float64, float64) {}
func (Base) OnOrderCancelled(string) {}
func (Base) OnMarketUpdate(*Context) {}

// floatParam reads an optional float parameter from the raw config map.
// Integers widen to float. A present value of any other type is an
// invalid-input error; an absent key keeps the default.
func floatParam(params map[string]any, name string, out *float64) error {
	raw, ok := params[name]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		*out = v
	case float32:
		*out = float64(v)
	case int:
		*out = float64(v)
	case int64:
		*out = float64(v)
	default:
		return fmt.Errorf("strategy: parameter %q: expected number, got %T: %w",
			name, raw, domain.ErrInvalidInput)
	}
	return nil
}

// intParam reads an optional positive integer parameter.
func intParam(params map[string]any, name string, out *int) error {
	raw, ok := params[name]
	if !ok {
		return nil
	}
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	default:
		return fmt.Errorf("strategy: parameter %q: expected integer, got %T: %w",
			name, raw, domain.ErrInvalidInput)
	}
	if n <= 0 {
		return fmt.Errorf("strategy: parameter %q: must be positive, got %d: %w",
			name, n, domain.ErrInvalidInput)
	}
	*out = n
	return nil
}
