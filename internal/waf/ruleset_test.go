package waf

import "testing"

func TestEvaluateEmptyExpressionMatchesEverything(t *testing.T) {
	rules := []Rule{{ID: "a", Enabled: true, Action: ActionAllow, Priority: 1, Expression: Expression{}}}
	out := Evaluate(rules, Fields{})
	if !out.Matched || out.Action != ActionAllow {
		t.Fatalf("expected empty expression to match, got %+v", out)
	}
}

func TestEvaluatePriorityOrdering(t *testing.T) {
	rules := []Rule{
		{ID: "low-prio", Enabled: true, Priority: 5, Action: ActionBlock, Expression: Expression{}},
		{ID: "high-prio", Enabled: true, Priority: 1, Action: ActionAllow, Expression: Expression{}},
	}
	out := Evaluate(rules, Fields{})
	if out.RuleID != "high-prio" {
		t.Fatalf("expected lowest priority to win, got %s", out.RuleID)
	}
}

// TestEvaluateTieBreakByID is scenario 4 from spec.md §8: two enabled rules
// at the same priority, id "a" must win over id "b".
func TestEvaluateTieBreakByID(t *testing.T) {
	rules := []Rule{
		{ID: "b", Enabled: true, Priority: 5, Action: ActionBlock, Expression: Expression{}},
		{ID: "a", Enabled: true, Priority: 5, Action: ActionAllow, Expression: Expression{}},
	}
	out := Evaluate(rules, Fields{})
	if out.RuleID != "a" {
		t.Fatalf("expected id 'a' to win priority tie, got %s", out.RuleID)
	}
}

func TestEvaluateDisabledRulesIgnored(t *testing.T) {
	rules := []Rule{
		{ID: "a", Enabled: false, Priority: 1, Action: ActionBlock, Expression: Expression{}},
		{ID: "b", Enabled: true, Priority: 2, Action: ActionAllow, Expression: Expression{}},
	}
	out := Evaluate(rules, Fields{})
	if out.RuleID != "b" {
		t.Fatalf("expected disabled rule to be skipped, got %s", out.RuleID)
	}
}

func TestEvaluateNoMatch(t *testing.T) {
	rules := []Rule{
		{ID: "a", Enabled: true, Priority: 1, Action: ActionBlock,
			Expression: Expression{{Field: "request.method", Operator: OpEquals, Value: "DELETE"}}},
	}
	out := Evaluate(rules, Fields{"request.method": "GET"})
	if out.Matched {
		t.Fatalf("expected no match, got %+v", out)
	}
	if out != NoMatch {
		t.Fatalf("expected zero-value NoMatch outcome")
	}
}

// TestEvaluateTorGlobalBlock is scenario 1 from spec.md §8.
func TestEvaluateTorGlobalBlock(t *testing.T) {
	rules := []Rule{
		{
			ID: "tor-block", Enabled: true, Priority: 1, Action: ActionBlock,
			Expression: Expression{{Field: "request.cf.country", Operator: OpEquals, Value: "T1"}},
		},
	}
	out := Evaluate(rules, Fields{"request.cf.country": "T1"})
	if !out.Matched || out.Action != ActionBlock {
		t.Fatalf("expected BLOCK outcome, got %+v", out)
	}
}

func TestEvaluateIsPureFunction(t *testing.T) {
	rules := []Rule{{ID: "a", Enabled: true, Priority: 1, Action: ActionAllow, Expression: Expression{}}}
	f := Fields{"x": "y"}
	first := Evaluate(rules, f)
	second := Evaluate(rules, f)
	if first != second {
		t.Fatalf("Evaluate must be pure: got %+v then %+v", first, second)
	}
}
