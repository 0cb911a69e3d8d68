package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"idsync/internal/domain"
)

// SyncRuleRepo persists sync rules with their matching rules, attribute
// flows, and scoping criteria trees.
type SyncRuleRepo struct {
	db *sql.DB
}

func NewSyncRuleRepo(db *sql.DB) *SyncRuleRepo {
	return &SyncRuleRepo{db: db}
}

const ruleColumns = `id, connected_system_id, name, direction, enabled,
	object_type, metaverse_object_type, project_to_metaverse, priority`

func (r *SyncRuleRepo) Create(ctx context.Context, rule *domain.SyncRule) (*domain.SyncRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	out := *rule
	out.ID = uuid.NewString()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sync_rules (`+ruleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.ConnectedSystemID, out.Name, string(out.Direction), boolToInt(out.Enabled),
		out.ObjectType, out.MetaverseObjectType, boolToInt(out.ProjectToMetaverse), out.Priority)
	if err != nil {
		return nil, mapDBError(err)
	}
	if err := insertRuleChildren(ctx, tx, &out); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update rewrites the rule and all of its children.
func (r *SyncRuleRepo) Update(ctx context.Context, rule *domain.SyncRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE sync_rules SET name = ?, direction = ?, enabled = ?, object_type = ?,
		 metaverse_object_type = ?, project_to_metaverse = ?, priority = ? WHERE id = ?`,
		rule.Name, string(rule.Direction), boolToInt(rule.Enabled), rule.ObjectType,
		rule.MetaverseObjectType, boolToInt(rule.ProjectToMetaverse), rule.Priority, rule.ID)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("sync rule %s not found", rule.ID)
	}

	for _, table := range []string{"object_matching_rules", "attribute_flow_rules", "scoping_groups"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE sync_rule_id = ?`, rule.ID); err != nil {
			return err
		}
	}
	if err := insertRuleChildren(ctx, tx, rule); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SyncRuleRepo) GetByID(ctx context.Context, id string) (*domain.SyncRule, error) {
	return r.getOne(ctx, `SELECT `+ruleColumns+` FROM sync_rules WHERE id = ?`, id)
}

func (r *SyncRuleRepo) GetByName(ctx context.Context, name string) (*domain.SyncRule, error) {
	return r.getOne(ctx, `SELECT `+ruleColumns+` FROM sync_rules WHERE name = ?`, name)
}

func (r *SyncRuleRepo) getOne(ctx context.Context, query, arg string) (*domain.SyncRule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (r *SyncRuleRepo) ListBySystem(ctx context.Context, systemID string) ([]*domain.SyncRule, error) {
	return r.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM sync_rules WHERE connected_system_id = ?
		 ORDER BY priority, name`, systemID)
}

func (r *SyncRuleRepo) ListEnabled(ctx context.Context, systemID string, direction domain.RuleDirection) ([]*domain.SyncRule, error) {
	return r.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM sync_rules
		 WHERE connected_system_id = ? AND direction = ? AND enabled = 1
		 ORDER BY priority, name`, systemID, string(direction))
}

func (r *SyncRuleRepo) queryRules(ctx context.Context, query string, args ...any) ([]*domain.SyncRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.SyncRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if err := r.loadChildren(ctx, rule); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

func scanRule(row rowScanner) (*domain.SyncRule, error) {
	var rule domain.SyncRule
	var direction string
	var enabled, project int64
	err := row.Scan(&rule.ID, &rule.ConnectedSystemID, &rule.Name, &direction, &enabled,
		&rule.ObjectType, &rule.MetaverseObjectType, &project, &rule.Priority)
	if err != nil {
		return nil, mapDBError(err)
	}
	rule.Direction = domain.RuleDirection(direction)
	rule.Enabled = enabled != 0
	rule.ProjectToMetaverse = project != 0
	return &rule, nil
}

func (r *SyncRuleRepo) loadChildren(ctx context.Context, rule *domain.SyncRule) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ord, source_attributes, target_attribute FROM object_matching_rules
		 WHERE sync_rule_id = ? ORDER BY ord`, rule.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var m domain.ObjectMatchingRule
		var sources string
		if err := rows.Scan(&m.Order, &sources, &m.TargetAttribute); err != nil {
			return err
		}
		m.SourceAttributes = splitAttrs(sources)
		rule.MatchingRules = append(rule.MatchingRules, m)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	flowRows, err := r.db.QueryContext(ctx,
		`SELECT ord, source_attributes, target_attribute FROM attribute_flow_rules
		 WHERE sync_rule_id = ? ORDER BY ord`, rule.ID)
	if err != nil {
		return err
	}
	defer flowRows.Close()
	for flowRows.Next() {
		var f domain.AttributeFlowRule
		var sources string
		if err := flowRows.Scan(&f.Order, &sources, &f.TargetAttribute); err != nil {
			return err
		}
		f.SourceAttributes = splitAttrs(sources)
		rule.AttributeFlows = append(rule.AttributeFlows, f)
	}
	if err := flowRows.Err(); err != nil {
		return err
	}

	return r.loadScoping(ctx, rule)
}

// scoping groups persist flat, each row carrying the owning rule id plus an
// optional parent group id; the tree is reassembled in memory.
type groupRow struct {
	id       int64
	parentID sql.NullInt64
	group    domain.ScopingCriteriaGroup
}

func (r *SyncRuleRepo) loadScoping(ctx context.Context, rule *domain.SyncRule) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, parent_group_id, combinator FROM scoping_groups
		 WHERE sync_rule_id = ? ORDER BY id`, rule.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	var groups []*groupRow
	byID := make(map[int64]*groupRow)
	for rows.Next() {
		var g groupRow
		var combinator string
		if err := rows.Scan(&g.id, &g.parentID, &combinator); err != nil {
			return err
		}
		g.group.Combinator = domain.GroupCombinator(combinator)
		groups = append(groups, &g)
		byID[g.id] = &g
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, g := range groups {
		critRows, err := r.db.QueryContext(ctx,
			`SELECT attribute, comparator, kind, value FROM scoping_criteria
			 WHERE group_id = ? ORDER BY id`, g.id)
		if err != nil {
			return err
		}
		for critRows.Next() {
			var c domain.ScopingCriterion
			var comparator, kind, value string
			if err := critRows.Scan(&c.Attribute, &comparator, &kind, &value); err != nil {
				critRows.Close()
				return err
			}
			c.Comparator = domain.Comparator(comparator)
			v, err := domain.ValueFromCanonical(domain.AttributeKind(kind), value, "", value)
			if err != nil {
				critRows.Close()
				return err
			}
			c.Value = v
			g.group.Criteria = append(g.group.Criteria, c)
		}
		if err := critRows.Err(); err != nil {
			critRows.Close()
			return err
		}
		critRows.Close()
	}

	// Attach children to parents depth-last: rows are ordered by id and
	// parents are always inserted before their children.
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if !g.parentID.Valid {
			continue
		}
		parent := byID[g.parentID.Int64]
		if parent != nil {
			parent.group.Groups = append([]domain.ScopingCriteriaGroup{g.group}, parent.group.Groups...)
		}
	}
	for _, g := range groups {
		if !g.parentID.Valid {
			rule.Scoping = append(rule.Scoping, g.group)
		}
	}
	return nil
}

func insertRuleChildren(ctx context.Context, tx *sql.Tx, rule *domain.SyncRule) error {
	for i, m := range rule.MatchingRules {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO object_matching_rules (sync_rule_id, ord, source_attributes, target_attribute)
			 VALUES (?, ?, ?, ?)`,
			rule.ID, i, joinAttrs(m.SourceAttributes), m.TargetAttribute)
		if err != nil {
			return err
		}
	}
	for i, f := range rule.AttributeFlows {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO attribute_flow_rules (sync_rule_id, ord, source_attributes, target_attribute)
			 VALUES (?, ?, ?, ?)`,
			rule.ID, i, joinAttrs(f.SourceAttributes), f.TargetAttribute)
		if err != nil {
			return err
		}
	}
	for _, g := range rule.Scoping {
		if err := insertScopingGroup(ctx, tx, rule.ID, nil, g); err != nil {
			return err
		}
	}
	return nil
}

func insertScopingGroup(ctx context.Context, tx *sql.Tx, ruleID string, parentID *int64, g domain.ScopingCriteriaGroup) error {
	combinator := g.Combinator
	if combinator == "" {
		combinator = domain.CombinatorAll
	}
	var parent sql.NullInt64
	if parentID != nil {
		parent = sql.NullInt64{Int64: *parentID, Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO scoping_groups (sync_rule_id, parent_group_id, combinator) VALUES (?, ?, ?)`,
		ruleID, parent, string(combinator))
	if err != nil {
		return err
	}
	groupID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, c := range g.Criteria {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO scoping_criteria (group_id, attribute, comparator, kind, value) VALUES (?, ?, ?, ?, ?)`,
			groupID, c.Attribute, string(c.Comparator), string(c.Value.Kind()), c.Value.Canonical())
		if err != nil {
			return err
		}
	}
	for _, child := range g.Groups {
		if err := insertScopingGroup(ctx, tx, ruleID, &groupID, child); err != nil {
			return err
		}
	}
	return nil
}
