// Package sync implements the reconciliation engine: import normalization,
// join/projection, attribute flow, scoping, export reconciliation, and the
// full/delta run orchestrators.
package sync

import (
	"strings"

	"idsync/internal/domain"
)

// attributeCarrier is the part of an object the scoping evaluator needs.
// Both connector-space and metaverse objects satisfy it.
type attributeCarrier interface {
	ValuesOf(name string) []domain.AttributeValue
}

// EvaluateScope reports whether obj is in scope for the rule. Import rules
// evaluate connector-space attributes, export rules metaverse attributes;
// callers pass the matching object side and the direction they are
// processing. A direction mismatch is out of scope, never an error.
//
// Top-level groups combine with OR. A rule without groups, and an empty
// group, are in scope by default.
func EvaluateScope(obj attributeCarrier, rule *domain.SyncRule, direction domain.RuleDirection) bool {
	if rule.Direction != direction {
		return false
	}
	if len(rule.Scoping) == 0 {
		return true
	}
	for _, g := range rule.Scoping {
		if evaluateGroup(obj, g) {
			return true
		}
	}
	return false
}

func evaluateGroup(obj attributeCarrier, g domain.ScopingCriteriaGroup) bool {
	if len(g.Criteria) == 0 && len(g.Groups) == 0 {
		return true
	}
	all := g.Combinator != domain.CombinatorAny
	for _, c := range g.Criteria {
		pass := evaluateCriterion(obj, c)
		if all && !pass {
			return false
		}
		if !all && pass {
			return true
		}
	}
	for _, child := range g.Groups {
		pass := evaluateGroup(obj, child)
		if all && !pass {
			return false
		}
		if !all && pass {
			return true
		}
	}
	return all
}

// evaluateCriterion resolves the named attribute on the object; a
// multi-valued attribute passes when any of its values does. An absent
// attribute never passes.
func evaluateCriterion(obj attributeCarrier, c domain.ScopingCriterion) bool {
	values := obj.ValuesOf(c.Attribute)
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if compareValue(v, c.Comparator, c.Value) {
			return true
		}
	}
	return false
}

func compareValue(have domain.AttributeValue, cmp domain.Comparator, want domain.AttributeValue) bool {
	switch cmp {
	case domain.ComparatorEquals:
		return have.EqualFold(want)
	case domain.ComparatorNotEquals:
		return !have.EqualFold(want)
	case domain.ComparatorStartsWith:
		return textCompare(have, want, strings.HasPrefix)
	case domain.ComparatorEndsWith:
		return textCompare(have, want, strings.HasSuffix)
	case domain.ComparatorContains:
		return textCompare(have, want, strings.Contains)
	case domain.ComparatorGreaterThan:
		return ordered(have, want, func(c int) bool { return c > 0 })
	case domain.ComparatorLessThan:
		return ordered(have, want, func(c int) bool { return c < 0 })
	}
	return false
}

// String comparators are case-insensitive and apply to text only.
func textCompare(have, want domain.AttributeValue, fn func(s, sub string) bool) bool {
	if have.Kind() != domain.KindText || want.Kind() != domain.KindText {
		return false
	}
	return fn(strings.ToLower(have.Text()), strings.ToLower(want.Text()))
}

// Ordering comparators apply to numbers and datetimes on the typed payload.
func ordered(have, want domain.AttributeValue, pass func(cmp int) bool) bool {
	if have.Kind() != want.Kind() {
		return false
	}
	switch have.Kind() {
	case domain.KindNumber:
		switch {
		case have.Number() > want.Number():
			return pass(1)
		case have.Number() < want.Number():
			return pass(-1)
		}
		return pass(0)
	case domain.KindDateTime:
		switch {
		case have.Time().After(want.Time()):
			return pass(1)
		case have.Time().Before(want.Time()):
			return pass(-1)
		}
		return pass(0)
	}
	return false
}
