// Package rebalance validates target allocations and computes rebalancing
// plans under three constraint regimes.
package rebalance

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
)

// Status tells the caller what happened to the supplied target allocation.
type Status string

const (
	// StatusReady means the weights already summed to 1 and were used as-is.
	StatusReady Status = "ready"
	// StatusRebalanced means the weights were rescaled to sum to 1.
	StatusRebalanced Status = "rebalanced"
	// StatusError means the spec could not be normalized; the caller must
	// re-prompt or abort.
	StatusError Status = "error"
)

var one = decimal.NewFromInt(1)

// Normalize parses a target-allocation spec of whitespace-separated
// KEY-WEIGHT tokens into a validated weight map summing to 1.
//
// Negative weights are clamped to 0 before summing. When the raw sum is
// exactly 1 the parsed weights are kept as-is with StatusReady; otherwise
// every weight is rescaled by 1/sum, returning StatusRebalanced. Non-positive
// entries are dropped on both paths so every returned weight is strictly
// positive, the invariant the planner relies on. A malformed token or a zero
// sum yields (nil, StatusError, err).
func Normalize(spec string) (domain.Weights, Status, error) {
	tokens := strings.Fields(spec)
	if len(tokens) == 0 {
		return nil, StatusError, errors.New("empty target allocation")
	}

	parsed := make(domain.Weights, len(tokens))
	sum := decimal.Zero
	for _, token := range tokens {
		parts := strings.SplitN(token, "-", 2)
		if len(parts) != 2 {
			return nil, StatusError, errors.Errorf("malformed token %q, want KEY-WEIGHT", token)
		}
		weight, err := decimal.NewFromString(parts[1])
		if err != nil {
			return nil, StatusError, errors.Wrapf(err, "malformed weight in token %q", token)
		}
		if weight.IsNegative() {
			weight = decimal.Zero
		}
		sum = sum.Add(weight)
		parsed[parts[0]] = weight
	}

	if sum.IsZero() {
		return nil, StatusError, errors.New("target weights sum to zero")
	}
	if sum.Equal(one) {
		ready := make(domain.Weights, len(parsed))
		for key, weight := range parsed {
			if weight.IsPositive() {
				ready[key] = weight
			}
		}
		return ready, StatusReady, nil
	}

	rescaled := make(domain.Weights, len(parsed))
	coeff := one.Div(sum)
	for key, weight := range parsed {
		weight = weight.Mul(coeff)
		if weight.IsPositive() {
			rescaled[key] = weight
		}
	}
	return rescaled, StatusRebalanced, nil
}
