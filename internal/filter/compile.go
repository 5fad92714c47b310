package filter

import (
	"fmt"
	"strings"

	"github.com/driftdb/vectorcore/internal/vdberrors"
)

// Metadata is the tagged-value form of a chunk's metadata map, as
// seen by a compiled Predicate.
type Metadata map[string]Value

// Predicate is a compiled, side-effect-free function from a metadata
// map to a boolean match.
type Predicate func(meta Metadata) bool

// Spec is a raw filter specification: field name to constraint, where
// a constraint is either a bare scalar (implicit eq) or a map of
// operator to operand, e.g. {"topic": "a"} or {"score": {"gte": 0.5}}.
type Spec map[string]any

// operators known to the compiler.
const (
	opEq       = "eq"
	opNe       = "ne"
	opGt       = "gt"
	opGte      = "gte"
	opLt       = "lt"
	opLte      = "lte"
	opContains = "contains"
	opIn       = "in"
	opNin      = "nin"
)

// Compile compiles spec into a Predicate. An empty or nil spec
// compiles to a universal predicate (always matches). Unknown
// operators or malformed operands raise InvalidFilter.
func Compile(spec Spec) (Predicate, error) {
	if len(spec) == 0 {
		return func(Metadata) bool { return true }, nil
	}

	type fieldPredicate struct {
		field string
		check func(Value, bool) bool
	}

	var checks []fieldPredicate

	for field, constraint := range spec {
		ops, err := normalizeConstraint(constraint)
		if err != nil {
			return nil, vdberrors.InvalidFilter(fmt.Sprintf("field %q: %v", field, err))
		}

		for op, operand := range ops {
			check, err := compileOp(op, operand)
			if err != nil {
				return nil, vdberrors.InvalidFilter(fmt.Sprintf("field %q: %v", field, err))
			}
			checks = append(checks, fieldPredicate{field: field, check: check})
		}
	}

	return func(meta Metadata) bool {
		for _, fp := range checks {
			v, present := meta[fp.field]
			if !fp.check(v, present) {
				return false
			}
		}
		return true
	}, nil
}

// normalizeConstraint turns a raw constraint (scalar or operator map)
// into an operator->operand map. A bare scalar is sugar for {"eq": scalar}.
func normalizeConstraint(constraint any) (map[string]any, error) {
	if m, ok := constraint.(map[string]any); ok {
		if len(m) == 0 {
			return nil, fmt.Errorf("empty constraint")
		}
		return m, nil
	}
	return map[string]any{opEq: constraint}, nil
}

func compileOp(op string, operand any) (func(Value, bool) bool, error) {
	switch op {
	case opEq:
		want := FromAny(operand)
		return func(v Value, present bool) bool {
			return present && v.Equal(want)
		}, nil

	case opNe:
		want := FromAny(operand)
		return func(v Value, present bool) bool {
			return !present || !v.Equal(want)
		}, nil

	case opGt, opGte, opLt, opLte:
		want := FromAny(operand)
		if want.Tag != TagNumber && want.Tag != TagString {
			return nil, fmt.Errorf("operator %q requires a number or date string operand", op)
		}
		return func(v Value, present bool) bool {
			if !present {
				return false
			}
			cmp, ok := v.compare(want)
			if !ok {
				return false
			}
			switch op {
			case opGt:
				return cmp > 0
			case opGte:
				return cmp >= 0
			case opLt:
				return cmp < 0
			default: // opLte
				return cmp <= 0
			}
		}, nil

	case opContains:
		s, ok := operand.(string)
		if !ok {
			return nil, fmt.Errorf("operator %q requires a string operand", op)
		}
		needle := strings.ToLower(s)
		return func(v Value, present bool) bool {
			return present && v.Tag == TagString && strings.Contains(strings.ToLower(v.Str), needle)
		}, nil

	case opIn:
		list, err := toValueList(operand)
		if err != nil {
			return nil, fmt.Errorf("operator %q: %w", op, err)
		}
		return func(v Value, present bool) bool {
			if !present {
				return false
			}
			for _, want := range list {
				if v.Equal(want) {
					return true
				}
			}
			return false
		}, nil

	case opNin:
		list, err := toValueList(operand)
		if err != nil {
			return nil, fmt.Errorf("operator %q: %w", op, err)
		}
		return func(v Value, present bool) bool {
			if !present {
				return true
			}
			for _, want := range list {
				if v.Equal(want) {
					return false
				}
			}
			return true
		}, nil

	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
}

func toValueList(operand any) ([]Value, error) {
	list, ok := operand.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list operand")
	}
	out := make([]Value, len(list))
	for i, item := range list {
		out[i] = FromAny(item)
	}
	return out, nil
}

// MetadataFromAny converts a raw map[string]any (as decoded from
// JSON, or passed directly by a caller) into Metadata.
func MetadataFromAny(raw map[string]any) Metadata {
	meta := make(Metadata, len(raw))
	for k, v := range raw {
		meta[k] = FromAny(v)
	}
	return meta
}

// ToAny converts Metadata back to a map[string]any, for returning
// chunk snapshots at the public command surface.
func (m Metadata) ToAny() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v Value) any {
	switch v.Tag {
	case TagNull:
		return nil
	case TagBool:
		return v.Bool
	case TagNumber:
		return v.Num
	case TagString:
		return v.Str
	case TagArray:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = valueToAny(item)
		}
		return out
	}
	return nil
}
