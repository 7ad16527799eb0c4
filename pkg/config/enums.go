package config

// ErrorStrategy defines how a workflow reacts when a step exhausts its retries
type ErrorStrategy string

const (
	// StrategyRetryAndFallback tries a matching compensation action first,
	// then switches to the fallback template, then fails the workflow
	StrategyRetryAndFallback ErrorStrategy = "retry-and-fallback"
	// StrategyCompensate runs every matching compensation action in
	// declaration order, then fails the workflow
	StrategyCompensate ErrorStrategy = "compensate"
	// StrategyFailFast fails the workflow immediately (default)
	StrategyFailFast ErrorStrategy = "fail-fast"
)

// IsValid checks if the error strategy is valid
func (s ErrorStrategy) IsValid() bool {
	switch s {
	case StrategyRetryAndFallback, StrategyCompensate, StrategyFailFast:
		return true
	default:
		return false
	}
}

// FailureCondition narrows a compensation action to a class of step failure
type FailureCondition string

const (
	// ConditionTimeout matches step attempts that ran out of time
	ConditionTimeout FailureCondition = "timeout"
	// ConditionServiceUnavailable matches failures of unreachable stage/external targets
	ConditionServiceUnavailable FailureCondition = "service-unavailable"
	// ConditionPaymentFailed matches declined or errored payment operations
	ConditionPaymentFailed FailureCondition = "payment-failed"
	// ConditionBookingFailed matches rejected booking operations
	ConditionBookingFailed FailureCondition = "booking-failed"
	// ConditionAny matches every failure class
	ConditionAny FailureCondition = "any"
)

// IsValid checks if the failure condition is valid
func (c FailureCondition) IsValid() bool {
	switch c {
	case ConditionTimeout, ConditionServiceUnavailable, ConditionPaymentFailed,
		ConditionBookingFailed, ConditionAny:
		return true
	default:
		return false
	}
}

// Matches reports whether this condition covers the observed failure class.
// An empty condition behaves like ConditionAny.
func (c FailureCondition) Matches(observed FailureCondition) bool {
	return c == "" || c == ConditionAny || c == observed
}
