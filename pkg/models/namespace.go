package models

// Consistency is the propagation class of a blackboard namespace.
type Consistency string

const (
	// ConsistencyStrong namespaces confirm propagation synchronously:
	// a write returns only after the sync notification has been delivered.
	ConsistencyStrong Consistency = "strong"
	// ConsistencyEventual namespaces publish change notifications
	// asynchronously after the write returns.
	ConsistencyEventual Consistency = "eventual"
)

// Namespace identifies one scope of the blackboard. The enumeration is
// fixed; operations against any other name fail.
type Namespace string

const (
	NamespaceUserInput   Namespace = "user_input"
	NamespacePrefs       Namespace = "prefs"
	NamespaceIntent      Namespace = "intent"
	NamespaceConstraints Namespace = "constraints"
	NamespaceCandidates  Namespace = "candidates"
	NamespaceEvals       Namespace = "evals"
	NamespaceSelections  Namespace = "selections"
	NamespaceItinerary   Namespace = "itinerary"
	NamespaceAffiliate   Namespace = "affiliate"
	NamespaceMedia       Namespace = "media"
	NamespaceCache       Namespace = "cache"
	NamespaceErrors      Namespace = "errors"
	NamespaceAudit       Namespace = "audit"
)

// AllNamespaces returns the full enumeration in declaration order.
func AllNamespaces() []Namespace {
	return []Namespace{
		NamespaceUserInput,
		NamespacePrefs,
		NamespaceIntent,
		NamespaceConstraints,
		NamespaceCandidates,
		NamespaceEvals,
		NamespaceSelections,
		NamespaceItinerary,
		NamespaceAffiliate,
		NamespaceMedia,
		NamespaceCache,
		NamespaceErrors,
		NamespaceAudit,
	}
}

// IsValid checks if the namespace is part of the fixed enumeration
func (n Namespace) IsValid() bool {
	switch n {
	case NamespaceUserInput, NamespacePrefs, NamespaceIntent, NamespaceConstraints,
		NamespaceCandidates, NamespaceEvals, NamespaceSelections, NamespaceItinerary,
		NamespaceAffiliate, NamespaceMedia, NamespaceCache, NamespaceErrors, NamespaceAudit:
		return true
	default:
		return false
	}
}

// Consistency returns the propagation class of the namespace.
// Selections and itinerary are strong; everything else is eventual.
func (n Namespace) Consistency() Consistency {
	switch n {
	case NamespaceSelections, NamespaceItinerary:
		return ConsistencyStrong
	default:
		return ConsistencyEventual
	}
}
