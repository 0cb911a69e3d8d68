package sync

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"idsync/internal/domain"
)

const defaultPageSize = 100

// Deps carries the collaborators an Engine needs.
type Deps struct {
	Systems    domain.ConnectedSystemRepository
	Objects    domain.ObjectRepository
	Metaverse  domain.MetaverseRepository
	Rules      domain.SyncRuleRepository
	Exports    domain.PendingExportRepository
	Runs       domain.RunRepository
	Connectors domain.ConnectorRegistry
	Logger     *slog.Logger
}

// Engine sequences full and delta runs for one connected system at a time.
// Objects are processed strictly in order within a run: join-conflict
// detection and export reconciliation observe earlier objects' effects, so
// reordering would change outcomes.
type Engine struct {
	systems    domain.ConnectedSystemRepository
	objects    domain.ObjectRepository
	metaverse  domain.MetaverseRepository
	rules      domain.SyncRuleRepository
	runs       domain.RunRepository
	connectors domain.ConnectorRegistry

	normalizer *Normalizer
	flow       *FlowProcessor
	join       *JoinProjector
	deletion   *DeletionEngine
	reconciler *ExportReconciler
	planner    *ExportPlanner

	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(d Deps) *Engine {
	deletion := NewDeletionEngine(d.Objects, d.Metaverse, d.Systems, d.Logger)
	return &Engine{
		systems:    d.Systems,
		objects:    d.Objects,
		metaverse:  d.Metaverse,
		rules:      d.Rules,
		runs:       d.Runs,
		connectors: d.Connectors,
		normalizer: NewNormalizer(NewReferenceResolver(d.Objects)),
		flow:       NewFlowProcessor(d.Objects),
		join:       NewJoinProjector(d.Objects, d.Metaverse, deletion, d.Logger),
		deletion:   deletion,
		reconciler: NewExportReconciler(d.Exports, d.Logger),
		planner:    NewExportPlanner(d.Exports, d.Logger),
		logger:     d.Logger.With("component", "sync-engine"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// PerformFullImport pulls every record the connector can see and reconciles
// the connector space against it.
func (e *Engine) PerformFullImport(ctx context.Context, profile domain.RunProfile) (*domain.SyncRun, error) {
	return e.runImport(ctx, profile, domain.RunFullImport)
}

// PerformDeltaImport pulls only records the connector reports as changed.
func (e *Engine) PerformDeltaImport(ctx context.Context, profile domain.RunProfile) (*domain.SyncRun, error) {
	return e.runImport(ctx, profile, domain.RunDeltaImport)
}

func (e *Engine) runImport(ctx context.Context, profile domain.RunProfile, runType domain.RunType) (*domain.SyncRun, error) {
	sys, err := e.systems.GetByID(ctx, profile.ConnectedSystemID)
	if err != nil {
		return nil, err
	}
	connector, err := e.connectors.For(sys.Name)
	if err != nil {
		return nil, err
	}

	schemas, err := e.schemasByName(ctx, sys.ID)
	if err != nil {
		return nil, err
	}

	run, err := e.startRun(ctx, sys.ID, runType)
	if err != nil {
		return nil, err
	}

	var records []domain.RawRecord
	if runType == domain.RunFullImport {
		records, err = connector.FullImport(ctx)
	} else {
		records, err = connector.DeltaImport(ctx)
	}
	if err != nil {
		// Connector errors abort the run and propagate unmodified.
		e.finishRun(ctx, run, domain.RunStatusFailed)
		return run, err
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			e.finishRun(ctx, run, domain.RunStatusCancelled)
			return run, ctx.Err()
		}
		if err := e.recordOutcome(ctx, run, e.importRecord(ctx, sys.ID, schemas, rec)); err != nil {
			e.finishRun(ctx, run, domain.RunStatusFailed)
			return run, err
		}
	}

	e.finishRun(ctx, run, domain.RunStatusCompleted)
	e.logger.Info("import finished", "run_id", run.ID, "system", sys.Name,
		"type", string(runType), "objects", run.ObjectsProcessed, "errors", run.ErrorCount)
	return run, nil
}

// PerformFullSync runs join/projection, attribute flow and export planning
// over every object in the system.
func (e *Engine) PerformFullSync(ctx context.Context, profile domain.RunProfile) (*domain.SyncRun, error) {
	return e.runSync(ctx, profile, domain.RunFullSync)
}

// PerformDeltaSync is PerformFullSync restricted to objects modified
// strictly after the previous completed delta sync's start time.
func (e *Engine) PerformDeltaSync(ctx context.Context, profile domain.RunProfile) (*domain.SyncRun, error) {
	return e.runSync(ctx, profile, domain.RunDeltaSync)
}

func (e *Engine) runSync(ctx context.Context, profile domain.RunProfile, runType domain.RunType) (*domain.SyncRun, error) {
	sys, err := e.systems.GetByID(ctx, profile.ConnectedSystemID)
	if err != nil {
		return nil, err
	}
	importRules, err := e.rules.ListEnabled(ctx, sys.ID, domain.DirectionImport)
	if err != nil {
		return nil, err
	}
	exportRules, err := e.rules.ListEnabled(ctx, sys.ID, domain.DirectionExport)
	if err != nil {
		return nil, err
	}

	run, err := e.startRun(ctx, sys.ID, runType)
	if err != nil {
		return nil, err
	}

	pageSize := profile.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	process := func(o *domain.ConnectedSystemObject) error {
		return e.recordOutcome(ctx, run, e.syncObject(ctx, o, importRules, exportRules))
	}

	if runType == domain.RunDeltaSync {
		watermark, werr := e.watermarkFor(ctx, sys.ID, domain.RunDeltaSync)
		if werr != nil {
			e.finishRun(ctx, run, domain.RunStatusFailed)
			return run, werr
		}
		err = e.forEachModified(ctx, sys.ID, watermark, pageSize, process)
	} else {
		err = e.forEachObject(ctx, sys.ID, pageSize, process)
	}
	if err != nil {
		status := domain.RunStatusFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = domain.RunStatusCancelled
		}
		e.finishRun(ctx, run, status)
		return run, err
	}

	e.finishRun(ctx, run, domain.RunStatusCompleted)
	e.logger.Info("sync finished", "run_id", run.ID, "system", sys.Name,
		"type", string(runType), "objects", run.ObjectsProcessed, "errors", run.ErrorCount)
	return run, nil
}

// importRecord reconciles one raw record into the connector space and
// reconciles pending exports against the fresh state. The returned outcome
// describes the processed object; infrastructure failures surface in
// outcome.err and abort the run.
func (e *Engine) importRecord(ctx context.Context, systemID string, schemas map[string]*domain.ObjectTypeSchema, rec domain.RawRecord) outcome {
	now := e.now()

	schema := schemas[strings.ToLower(rec.ObjectType)]
	if schema == nil {
		return outcome{objectType: rec.ObjectType, err: domain.NewObjectError(
			domain.ErrUnexpectedAttribute, "", "", "unknown object type "+rec.ObjectType)}
	}

	attrs, err := e.normalizer.Normalize(ctx, schema, rec)
	if err != nil {
		return outcome{objectType: schema.Name, err: err}
	}

	externalID := externalIDOf(schema, attrs)
	if externalID == "" && rec.ChangeType != domain.ChangeDelete {
		return outcome{objectType: schema.Name, err: domain.NewObjectError(
			domain.ErrInvalidAttributeValue, "", schema.ExternalIDAttribute,
			"record carries no external id value")}
	}

	existing, err := e.objects.FindByExternalID(ctx, systemID, schema.Name, externalID)
	if err != nil {
		var notFound *domain.NotFoundError
		var ambiguous *domain.AmbiguousMatchError
		switch {
		case errors.As(err, &notFound):
			existing = nil
		case errors.As(err, &ambiguous):
			return outcome{objectID: externalID, objectType: schema.Name, err: domain.NewObjectError(
				domain.ErrAmbiguousReference, externalID, schema.ExternalIDAttribute, err.Error())}
		default:
			return outcome{err: err}
		}
	}

	if rec.ChangeType == domain.ChangeDelete {
		if existing == nil {
			return outcome{objectID: externalID, objectType: schema.Name}
		}
		return outcome{objectID: existing.ID, objectType: schema.Name,
			err: e.obsolete(ctx, existing, now)}
	}

	if existing == nil {
		created, cerr := e.objects.Create(ctx, &domain.ConnectedSystemObject{
			ConnectedSystemID:   systemID,
			ObjectType:          schema.Name,
			ExternalIDAttribute: schema.ExternalIDAttribute,
			Attributes:          attrs,
			CreatedAt:           now,
		})
		if cerr != nil {
			return outcome{err: cerr}
		}
		return outcome{objectID: created.ID, objectType: schema.Name,
			err: e.reconciler.Reconcile(ctx, created, now)}
	}

	changed := false
	if existing.Status == domain.StatusObsolete {
		// The feed re-delivered the record; the object comes back to life.
		existing.Status = domain.StatusNormal
		changed = true
	}
	if !attrsEqual(existing.Attributes, attrs) {
		if err := e.objects.ReplaceAttributes(ctx, existing.ID, attrs); err != nil {
			return outcome{err: err}
		}
		existing.Attributes = attrs
		changed = true
	}
	if changed {
		existing.Touch(now)
		if err := e.objects.Update(ctx, existing); err != nil {
			return outcome{err: err}
		}
	}
	return outcome{objectID: existing.ID, objectType: schema.Name,
		err: e.reconciler.Reconcile(ctx, existing, now)}
}

// obsolete transitions an object out of the feed: the status flip stamps
// LastUpdated, the metaverse link (if any) is severed, and the deletion
// rule runs.
func (e *Engine) obsolete(ctx context.Context, o *domain.ConnectedSystemObject, now time.Time) error {
	o.MarkObsolete(now)
	if o.MetaverseObjectID != nil {
		return e.deletion.Disconnect(ctx, o, now)
	}
	return e.objects.Update(ctx, o)
}

// syncObject runs one object through the sync pipeline: join or project,
// flow attributes, plan exports. Export confirmation happens on import, not
// here; a sync pass brings no new evidence from the connected system.
func (e *Engine) syncObject(ctx context.Context, o *domain.ConnectedSystemObject, importRules, exportRules []*domain.SyncRule) outcome {
	out := outcome{objectID: o.ID, objectType: o.ObjectType}

	if o.Status == domain.StatusObsolete {
		return out
	}
	now := e.now()

	if err := e.join.Evaluate(ctx, o, importRules, now); err != nil {
		out.err = err
		return out
	}
	if o.MetaverseObjectID == nil {
		return out
	}

	m, err := e.metaverse.GetByID(ctx, *o.MetaverseObjectID)
	if err != nil {
		out.err = err
		return out
	}

	merged := domain.NewPendingChangeSet(m.ID)
	for _, rule := range importRules {
		if rule.ObjectType != o.ObjectType || !EvaluateScope(o, rule, domain.DirectionImport) {
			continue
		}
		cs, ferr := e.flow.Process(ctx, o, m, rule.AttributeFlows, o.ConnectedSystemID)
		if ferr != nil {
			out.err = ferr
			return out
		}
		merged.Merge(cs)
	}
	if !merged.Empty() {
		if err := e.metaverse.ApplyChangeSet(ctx, merged); err != nil {
			out.err = err
			return out
		}
		if m, err = e.metaverse.GetByID(ctx, m.ID); err != nil {
			out.err = err
			return out
		}
	}

	out.err = e.planner.Plan(ctx, o, m, exportRules)
	return out
}

// outcome is the result of processing one record or object.
type outcome struct {
	objectID   string
	objectType string
	err        error
}

// recordOutcome writes the per-object activity item and updates the run
// counters. Classified ObjectErrors are recorded and absorbed so the run
// continues; anything else aborts the run.
func (e *Engine) recordOutcome(ctx context.Context, run *domain.SyncRun, out outcome) error {
	run.ObjectsProcessed++

	item := &domain.RunItem{
		RunID:      run.ID,
		ObjectID:   out.objectID,
		ObjectType: out.objectType,
	}
	if out.err != nil {
		var objErr *domain.ObjectError
		if !errors.As(out.err, &objErr) {
			return out.err
		}
		run.ErrorCount++
		item.ErrorType = &objErr.Type
		item.AttributeName = objErr.Attribute
		item.Message = objErr.Message
		if item.ObjectID == "" {
			item.ObjectID = objErr.ObjectID
		}
		e.logger.Warn("object skipped", "run_id", run.ID,
			"object_id", item.ObjectID, "error_type", string(objErr.Type), "message", objErr.Message)
	}
	return e.runs.AddItem(ctx, item)
}

func (e *Engine) startRun(ctx context.Context, systemID string, runType domain.RunType) (*domain.SyncRun, error) {
	return e.runs.CreateRun(ctx, &domain.SyncRun{
		ConnectedSystemID: systemID,
		RunType:           runType,
		StartedAt:         e.now(),
	})
}

func (e *Engine) finishRun(ctx context.Context, run *domain.SyncRun, status domain.RunStatus) {
	// The terminal status must land even when the run's context is gone.
	ctx = context.WithoutCancel(ctx)
	t := e.now()
	run.Status = status
	run.FinishedAt = &t
	if err := e.runs.FinishRun(ctx, run); err != nil {
		e.logger.Error("failed to finish run", "run_id", run.ID, "error", err)
	}
}

func (e *Engine) schemasByName(ctx context.Context, systemID string) (map[string]*domain.ObjectTypeSchema, error) {
	types, err := e.systems.ListObjectTypes(ctx, systemID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.ObjectTypeSchema, len(types))
	for i := range types {
		out[strings.ToLower(types[i].Name)] = &types[i]
	}
	return out, nil
}

// externalIDOf pulls the canonical external-id value from a normalized
// attribute set.
func externalIDOf(schema *domain.ObjectTypeSchema, attrs []domain.ObjectAttribute) string {
	for _, a := range attrs {
		if strings.EqualFold(a.Name, schema.ExternalIDAttribute) {
			return a.Value.Canonical()
		}
	}
	return ""
}

// attrsEqual compares two attribute sets as multisets of (name, value).
func attrsEqual(a, b []domain.ObjectAttribute) bool {
	if len(a) != len(b) {
		return false
	}
	matched := make([]bool, len(b))
outer:
	for _, av := range a {
		for i, bv := range b {
			if !matched[i] && strings.EqualFold(av.Name, bv.Name) && av.Value.Equal(bv.Value) {
				matched[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}
