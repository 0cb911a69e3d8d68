// Package declarative loads connected-system, metaverse-policy and
// sync-rule definitions from YAML and applies them idempotently.
package declarative

// SupportedAPIVersion is the apiVersion every document must declare.
const SupportedAPIVersion = "idsync/v1"

// Document kinds.
const (
	KindConnectedSystem     = "ConnectedSystem"
	KindSyncRule            = "SyncRule"
	KindMetaverseTypePolicy = "MetaverseTypePolicy"
)

// docHeader is decoded loosely first to dispatch on kind.
type docHeader struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
}

// ConnectedSystemDoc declares one connected system and its object types.
type ConnectedSystemDoc struct {
	APIVersion  string          `yaml:"apiVersion"`
	Kind        string          `yaml:"kind"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	ObjectTypes []ObjectTypeDef `yaml:"objectTypes"`
}

// ObjectTypeDef declares the schema of one object type.
type ObjectTypeDef struct {
	Name                string         `yaml:"name"`
	ExternalIDAttribute string         `yaml:"externalIdAttribute"`
	Attributes          []AttributeDef `yaml:"attributes"`
}

// AttributeDef declares one attribute of an object type.
type AttributeDef struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	MultiValued bool   `yaml:"multiValued"`
}

// MetaverseTypePolicyDoc declares the deletion lifecycle for one metaverse
// object type.
type MetaverseTypePolicyDoc struct {
	APIVersion                    string `yaml:"apiVersion"`
	Kind                          string `yaml:"kind"`
	ObjectType                    string `yaml:"objectType"`
	DeletionRule                  string `yaml:"deletionRule"`
	GracePeriodDays               *int   `yaml:"gracePeriodDays"`
	RemoveContributedOnObsoletion bool   `yaml:"removeContributedOnObsoletion"`
}

// SyncRuleDoc declares one sync rule. System is the connected system's name;
// the applier resolves it to an id.
type SyncRuleDoc struct {
	APIVersion          string          `yaml:"apiVersion"`
	Kind                string          `yaml:"kind"`
	Name                string          `yaml:"name"`
	System              string          `yaml:"system"`
	Direction           string          `yaml:"direction"`
	Enabled             *bool           `yaml:"enabled"`
	ObjectType          string          `yaml:"objectType"`
	MetaverseObjectType string          `yaml:"metaverseObjectType"`
	ProjectToMetaverse  bool            `yaml:"projectToMetaverse"`
	Priority            int             `yaml:"priority"`
	Scoping             []ScopeGroupDef `yaml:"scoping"`
	MatchingRules       []MappingDef    `yaml:"matchingRules"`
	AttributeFlows      []MappingDef    `yaml:"attributeFlows"`
}

// ScopeGroupDef is one node of a rule's scoping criteria tree.
type ScopeGroupDef struct {
	Combinator string          `yaml:"combinator"`
	Criteria   []CriterionDef  `yaml:"criteria"`
	Groups     []ScopeGroupDef `yaml:"groups"`
}

// CriterionDef is one scoping criterion leaf. Value is wire-form text parsed
// according to Kind (defaulting to text).
type CriterionDef struct {
	Attribute  string `yaml:"attribute"`
	Comparator string `yaml:"comparator"`
	Kind       string `yaml:"kind"`
	Value      string `yaml:"value"`
}

// MappingDef declares a source-attributes-to-target mapping, used both for
// matching rules and attribute flows.
type MappingDef struct {
	SourceAttributes []string `yaml:"sourceAttributes"`
	TargetAttribute  string   `yaml:"targetAttribute"`
}

// DesiredState is everything loaded from one configuration directory.
type DesiredState struct {
	Systems  []ConnectedSystemDoc
	Policies []MetaverseTypePolicyDoc
	Rules    []SyncRuleDoc
}
