package ledger

import (
	"math"
	"sync"
)

const defaultCharsPerToken = 4

// CostPolicy converts token usage for one model into billing credits.
type CostPolicy struct {
	// TokensPerCredit is how many tokens one billing credit covers.
	TokensPerCredit int64
	// MinimumCharge is the charge floor, applied even when computed usage
	// is zero.
	MinimumCharge int64
	// OutputMultiplier is the assumed output-token multiple of the input,
	// used for worst-case estimation at reservation time.
	OutputMultiplier float64
	// SafetyFactor inflates the reservation estimate.
	SafetyFactor float64
}

// DefaultCostPolicy is the fallback for unregistered model identifiers.
var DefaultCostPolicy = CostPolicy{
	TokensPerCredit:  1000,
	MinimumCharge:    1,
	OutputMultiplier: 2.0,
	SafetyFactor:     1.5,
}

// DefaultFlatCost is the per-call cost for unregistered generation models.
const DefaultFlatCost int64 = 5

// CostRegistry maps model identifiers to cost policies, with a defined
// fallback for unregistered identifiers. Loaded at startup, safe for
// concurrent readers.
type CostRegistry struct {
	mu        sync.RWMutex
	policies  map[string]CostPolicy
	flatCosts map[string]int64
	fallback  CostPolicy
}

// NewCostRegistry creates a registry with the default fallback policy.
func NewCostRegistry() *CostRegistry {
	return &CostRegistry{
		policies:  make(map[string]CostPolicy),
		flatCosts: make(map[string]int64),
		fallback:  DefaultCostPolicy,
	}
}

// Register sets the cost policy for a token-metered model.
func (r *CostRegistry) Register(model string, policy CostPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.policies[model] = policy
}

// RegisterFlat sets the per-call cost for a generation model.
func (r *CostRegistry) RegisterFlat(model string, cost int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flatCosts[model] = cost
}

// Policy returns the cost policy for a model, falling back to the default
// policy for unknown identifiers.
func (r *CostRegistry) Policy(model string) CostPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if policy, ok := r.policies[model]; ok {
		return policy
	}

	return r.fallback
}

// FlatCost returns the per-call cost for a generation model, falling back to
// DefaultFlatCost for unknown identifiers.
func (r *CostRegistry) FlatCost(model string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cost, ok := r.flatCosts[model]; ok {
		return cost
	}

	return DefaultFlatCost
}

// EstimateTokens approximates the token count of a text with the
// character-length heuristic. Non-empty text always counts at least one
// token, so small requests cannot bypass the budget check.
func EstimateTokens(text string) int64 {
	if len(text) == 0 {
		return 0
	}

	tokens := int64(len(text) / defaultCharsPerToken)
	if tokens == 0 {
		tokens = 1
	}

	return tokens
}

// credits converts a token count to whole billing credits, rounding up and
// applying the policy's minimum charge floor.
func (p CostPolicy) credits(tokens int64) int64 {
	perCredit := p.TokensPerCredit
	if perCredit <= 0 {
		perCredit = DefaultCostPolicy.TokensPerCredit
	}

	amount := int64(math.Ceil(float64(tokens) / float64(perCredit)))
	if amount < p.MinimumCharge {
		amount = p.MinimumCharge
	}

	return amount
}

// estimateCredits computes the worst-case reservation for an input of the
// given token count: input plus the assumed output multiple, inflated by the
// safety factor.
func (p CostPolicy) estimateCredits(inputTokens int64) (int64, int64) {
	outputMultiplier := p.OutputMultiplier
	if outputMultiplier <= 0 {
		outputMultiplier = DefaultCostPolicy.OutputMultiplier
	}

	safetyFactor := p.SafetyFactor
	if safetyFactor <= 0 {
		safetyFactor = DefaultCostPolicy.SafetyFactor
	}

	estimated := int64(math.Ceil(float64(inputTokens) * (1 + outputMultiplier) * safetyFactor))

	return p.credits(estimated), estimated
}
