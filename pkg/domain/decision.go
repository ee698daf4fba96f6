package domain

// RoutingDecision is the closed enumeration of destinations the router may
// choose. Any value outside this set is a classification-contract violation.
type RoutingDecision string

const (
	RouteAccount          RoutingDecision = "account"
	RouteAccountSensitive RoutingDecision = "account_sensitive"
	RouteInventory        RoutingDecision = "inventory"
	RouteOther            RoutingDecision = "other"
)

// RoutingDecisionValues lists the enum in its canonical order, used to build
// the structured schema handed to the reasoning engine.
func RoutingDecisionValues() []string {
	return []string{
		string(RouteAccount),
		string(RouteAccountSensitive),
		string(RouteInventory),
		string(RouteOther),
	}
}

// ParseRoutingDecision validates a raw classifier value against the enum.
// Callers must not default an invalid value to a handler; doing so would mask
// a classification-contract break.
func ParseRoutingDecision(raw string) (RoutingDecision, error) {
	switch RoutingDecision(raw) {
	case RouteAccount, RouteAccountSensitive, RouteInventory, RouteOther:
		return RoutingDecision(raw), nil
	}
	return "", ErrInvalidRoutingDecision
}
