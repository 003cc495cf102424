package types

// UsageKind names a metered feature with its own fixed token cost.
type UsageKind string

const (
	UsageRecipeGeneration UsageKind = "recipe_generation"
	UsagePhotoAnalysis    UsageKind = "photo_analysis"
)

// Token pricing and limits
const (
	TokensOnSignup          = 10
	CostPerRecipeGeneration = 1
	CostPerPhotoAnalysis    = 2
	TokensPerDollar         = 100
	MinPurchaseDollars      = 1
	MaxPurchaseDollars      = 100
)

var usageCosts = map[UsageKind]int{
	UsageRecipeGeneration: CostPerRecipeGeneration,
	UsagePhotoAnalysis:    CostPerPhotoAnalysis,
}

// Cost returns the token cost for this usage kind, or 0 for unknown kinds.
func (k UsageKind) Cost() int {
	return usageCosts[k]
}

// Valid reports whether k is a known usage kind.
func (k UsageKind) Valid() bool {
	_, ok := usageCosts[k]
	return ok
}

// TokenBalance is the spendable state of one account.
type TokenBalance struct {
	TokensBalance        int `json:"tokens_balance"`
	TotalGenerationsUsed int `json:"total_generations_used"`
}

// TokenValidationResult is the non-mutating paywall decision for one usage.
type TokenValidationResult struct {
	CanGenerate       bool `json:"can_generate"`
	RemainingTokens   int  `json:"remaining_tokens"`
	CostPerGeneration int  `json:"cost_per_generation"`
}
