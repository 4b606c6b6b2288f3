package task

import "context"

// Attempt runs one tool invocation and returns what it produced.
type Attempt func(ctx context.Context) (Outcome, error)

// TwoAttempt is the fallback policy: when the primary tool fails or produces
// an empty result, the alternate tool is tried exactly once before failure
// is surfaced. It is a value, not error-driven control flow.
type TwoAttempt struct {
	Primary  Attempt
	Fallback Attempt

	// Empty reports whether an otherwise-successful outcome is unusable
	// (e.g. zero beats). Nil means any clean outcome is accepted.
	Empty func(Outcome) bool
}

// Run executes the strategy. The fallback is consulted when the primary
// errors or comes back empty; a fallback that also comes back empty yields
// ErrEmptyResult.
func (s TwoAttempt) Run(ctx context.Context) (Outcome, error) {
	out, err := s.Primary(ctx)
	if err == nil && (s.Empty == nil || !s.Empty(out)) {
		return out, nil
	}
	if ctx.Err() != nil {
		if err != nil {
			return out, err
		}
		return out, ctx.Err()
	}
	if s.Fallback == nil {
		if err != nil {
			return out, err
		}
		return out, ErrEmptyResult
	}

	fbOut, fbErr := s.Fallback(ctx)
	if fbErr != nil {
		// Prefer the fallback's error; the primary already had its chance.
		return fbOut, fbErr
	}
	if s.Empty != nil && s.Empty(fbOut) {
		return fbOut, ErrEmptyResult
	}
	return fbOut, nil
}
