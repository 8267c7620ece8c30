package waf

// Expression is an ordered, conjunctive (AND-only) list of predicates.
// There is no disjunction: tenants expressing OR must define separate rules.
type Expression []Predicate

// Evaluate runs the predicates left to right and short-circuits on the
// first false. An empty expression matches every request.
func (e Expression) Evaluate(ruleID string, f Fields) bool {
	for i, p := range e {
		if !EvaluatePredicate(ruleID, i, p, f) {
			return false
		}
	}
	return true
}
