package domain

// RuleDirection says which way a sync rule flows attributes.
type RuleDirection string

const (
	DirectionImport RuleDirection = "import"
	DirectionExport RuleDirection = "export"
)

// GroupCombinator combines the members of a scoping criteria group.
type GroupCombinator string

const (
	CombinatorAll GroupCombinator = "all" // every criterion and child group must pass
	CombinatorAny GroupCombinator = "any" // at least one must pass
)

// Comparator is the operator of a scoping criterion.
type Comparator string

const (
	ComparatorEquals      Comparator = "equals"
	ComparatorNotEquals   Comparator = "not_equals"
	ComparatorStartsWith  Comparator = "starts_with"
	ComparatorEndsWith    Comparator = "ends_with"
	ComparatorContains    Comparator = "contains"
	ComparatorGreaterThan Comparator = "greater_than"
	ComparatorLessThan    Comparator = "less_than"
)

// ScopingCriterion is one leaf of a criteria tree: a named attribute, a
// comparator, and a typed comparison value.
type ScopingCriterion struct {
	Attribute  string
	Comparator Comparator
	Value      AttributeValue
}

// ScopingCriteriaGroup is a node of the criteria tree. Groups nest
// arbitrarily; an empty group evaluates to true.
type ScopingCriteriaGroup struct {
	Combinator GroupCombinator
	Criteria   []ScopingCriterion
	Groups     []ScopingCriteriaGroup
}

// ObjectMatchingRule declares one join key: the source attributes tried in
// order against a metaverse attribute.
type ObjectMatchingRule struct {
	Order            int
	SourceAttributes []string
	TargetAttribute  string
}

// AttributeFlowRule declares one attribute mapping: the union of the listed
// source attributes' values, in order, flowed to the target attribute.
type AttributeFlowRule struct {
	Order            int
	SourceAttributes []string
	TargetAttribute  string
}

// SyncRule configures how objects of one type in one connected system are
// matched, projected, scoped, and have their attributes flowed.
//
// For import rules the source side is the connector space and the target
// side the metaverse; for export rules the roles are reversed.
type SyncRule struct {
	ID                  string
	ConnectedSystemID   string
	Name                string
	Direction           RuleDirection
	Enabled             bool
	ObjectType          string
	MetaverseObjectType string
	ProjectToMetaverse  bool
	Priority            int
	MatchingRules       []ObjectMatchingRule
	AttributeFlows      []AttributeFlowRule
	Scoping             []ScopingCriteriaGroup
}

// Validate checks that the rule definition is well-formed.
func (r *SyncRule) Validate() error {
	if r.Name == "" {
		return ErrValidation("sync rule name is required")
	}
	if r.Direction != DirectionImport && r.Direction != DirectionExport {
		return ErrValidation("sync rule %s: direction must be import or export", r.Name)
	}
	if r.ObjectType == "" {
		return ErrValidation("sync rule %s: object type is required", r.Name)
	}
	if r.MetaverseObjectType == "" {
		return ErrValidation("sync rule %s: metaverse object type is required", r.Name)
	}
	if r.ProjectToMetaverse && r.Direction != DirectionImport {
		return ErrValidation("sync rule %s: only import rules can project", r.Name)
	}
	for _, m := range r.MatchingRules {
		if len(m.SourceAttributes) == 0 || m.TargetAttribute == "" {
			return ErrValidation("sync rule %s: matching rule needs source and target attributes", r.Name)
		}
	}
	for _, f := range r.AttributeFlows {
		if len(f.SourceAttributes) == 0 || f.TargetAttribute == "" {
			return ErrValidation("sync rule %s: attribute flow needs source and target attributes", r.Name)
		}
	}
	return nil
}
