package adjudication

import (
	apperrors "github.com/medishield/opdclaims/pkg/errors"
)

// Engine wires the pipeline stages together.  Data flows strictly forward:
// facts → normalize → validate → calculate → score → resolve.  No stage
// reaches back into an earlier stage's inputs.
//
// Engines are cheap to construct; the application layer builds a fresh one
// whenever the policy table is hot-reloaded.
type Engine struct {
	policy     Policy
	normalizer *Normalizer
	validator  *Validator
	calculator *Calculator
	scorer     *Scorer
	resolver   *Resolver
}

// NewEngine constructs an Engine for one policy table.
func NewEngine(policy Policy) *Engine {
	return &Engine{
		policy:     policy,
		normalizer: NewNormalizer(policy),
		validator:  NewValidator(policy),
		calculator: NewCalculator(policy),
		scorer:     NewScorer(policy),
		resolver:   NewResolver(policy),
	}
}

// Policy returns the policy table the engine was built with.
func (e *Engine) Policy() Policy { return e.policy }

// Adjudicate runs the full pipeline for exactly one claim.
//
// Hard input failures (malformed dates, non-positive amounts, missing
// documents, treatment before join, multiple claims in one extraction)
// return an error and no Result.  Every policy outcome, including rejection,
// returns a Result and a nil error.
func (e *Engine) Adjudicate(member MemberSnapshot, claims []RawClaim, statedTreatmentDate string) (*Result, error) {
	if len(claims) != 1 {
		return nil, apperrors.Newf(apperrors.ErrCodeClaimMultiNotSupported,
			"expected exactly one claim per upload, got %d", len(claims))
	}
	raw := claims[0]

	claim, err := e.normalizer.Normalize(raw, member, statedTreatmentDate)
	if err != nil {
		return nil, err
	}
	claim.PreauthObtained = member.PreauthObtained

	facts, err := ResolveFacts(member, claim.TreatmentDate, e.policy)
	if err != nil {
		return nil, err
	}

	flags := append(claim.Flags, e.validator.Validate(claim, member, facts)...)

	calc := e.calculator.Calculate(claim, facts)
	if calc.YTDClipped {
		flags = append(flags, Flag{
			Code:     FlagYTDLimitPartial,
			Severity: SeverityWarning,
			Message:  "payable amount clipped to remaining annual-limit headroom",
		})
	}

	confidence := e.scorer.Score(claim.DocConfidences, flags)

	return e.resolver.Resolve(claim, flags, calc, confidence), nil
}
