package main

import (
	"fmt"
	"math"
	"strings"
)

// Operator is an associative, commutative combine with an identity element.
// Because every operator here is both, the merge order of worker partials
// never changes the result, wraparound included.
type Operator int

const (
	OpSum Operator = iota
	OpProduct
	OpMin
	OpMax
	OpBitAnd
	OpBitOr
	OpBitXor
)

// Operators lists every supported operator.
var Operators = []Operator{OpSum, OpProduct, OpMin, OpMax, OpBitAnd, OpBitOr, OpBitXor}

func (op Operator) String() string {
	switch op {
	case OpSum:
		return "sum"
	case OpProduct:
		return "product"
	case OpMin:
		return "min"
	case OpMax:
		return "max"
	case OpBitAnd:
		return "and"
	case OpBitOr:
		return "or"
	case OpBitXor:
		return "xor"
	default:
		return fmt.Sprintf("Operator(%d)", int(op))
	}
}

// Symbol returns the operator as it would appear in a reduction clause.
func (op Operator) Symbol() string {
	switch op {
	case OpSum:
		return "+"
	case OpProduct:
		return "*"
	case OpBitAnd:
		return "&"
	case OpBitOr:
		return "|"
	case OpBitXor:
		return "^"
	default:
		return op.String()
	}
}

// ParseOperator accepts either the name or the symbol of an operator.
func ParseOperator(s string) (Operator, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, op := range Operators {
		if key == op.String() || key == op.Symbol() {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operator %q: %w", s, ErrInvalidConfiguration)
}

func (op Operator) valid() bool {
	return op >= OpSum && op <= OpBitXor
}

// Identity returns e such that Combine(e, x) == x for every x.
func (op Operator) Identity() int64 {
	switch op {
	case OpProduct:
		return 1
	case OpMin:
		return math.MaxInt64
	case OpMax:
		return math.MinInt64
	case OpBitAnd:
		return -1
	default:
		return 0
	}
}

// Combine applies op to a and b. Sum and product wrap on overflow.
func (op Operator) Combine(a, b int64) int64 {
	switch op {
	case OpSum:
		return a + b
	case OpProduct:
		return a * b
	case OpMin:
		return min(a, b)
	case OpMax:
		return max(a, b)
	case OpBitAnd:
		return a & b
	case OpBitOr:
		return a | b
	case OpBitXor:
		return a ^ b
	default:
		panic(fmt.Sprintf("parallel-basics: unknown operator %d", int(op)))
	}
}

// fold combines every element of xs into acc. The switch sits outside the
// loop so the hot path is a plain arithmetic loop.
func (op Operator) fold(acc int64, xs []int64) int64 {
	switch op {
	case OpSum:
		for _, x := range xs {
			acc += x
		}
	case OpProduct:
		for _, x := range xs {
			acc *= x
		}
	case OpMin:
		for _, x := range xs {
			acc = min(acc, x)
		}
	case OpMax:
		for _, x := range xs {
			acc = max(acc, x)
		}
	case OpBitAnd:
		for _, x := range xs {
			acc &= x
		}
	case OpBitOr:
		for _, x := range xs {
			acc |= x
		}
	case OpBitXor:
		for _, x := range xs {
			acc ^= x
		}
	default:
		panic(fmt.Sprintf("parallel-basics: unknown operator %d", int(op)))
	}
	return acc
}

// Sequential folds data with op on the calling goroutine. It is the baseline
// every parallel strategy is checked against.
func Sequential(data []int64, op Operator) (int64, error) {
	if !op.valid() {
		return 0, fmt.Errorf("unknown operator %d: %w", int(op), ErrInvalidConfiguration)
	}
	return op.fold(op.Identity(), data), nil
}

// MarshalText encodes the operator by name.
func (op Operator) MarshalText() ([]byte, error) {
	if !op.valid() {
		return nil, fmt.Errorf("unknown operator %d: %w", int(op), ErrInvalidConfiguration)
	}
	return []byte(op.String()), nil
}

// UnmarshalText accepts anything ParseOperator does.
func (op *Operator) UnmarshalText(text []byte) error {
	parsed, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}
