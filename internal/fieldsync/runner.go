package fieldsync

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gridmate/fieldsync/internal/hosttable"
	"github.com/gridmate/fieldsync/internal/logger"
	"github.com/gridmate/fieldsync/internal/runstore"
)

// RunRequest describes one synchronization run.
type RunRequest struct {
	Mode SelectionMode `json:"mode"`
	// Fields is the catalog selection; only checked, enabled entries are
	// synchronized.
	Fields []FieldSpec `json:"fields"`
	// SourceColumn names the column holding each record's source key (an
	// order number or similar). Either a display name or a column ID.
	SourceColumn string `json:"sourceColumn"`
}

// RunReport is everything a run produced, for rendering and persistence.
type RunReport struct {
	RunID         string                  `json:"runId"`
	Mode          SelectionMode           `json:"mode"`
	StartedAt     time.Time               `json:"startedAt"`
	FinishedAt    time.Time               `json:"finishedAt"`
	Result        CompletionResult        `json:"result"`
	FieldCreation []FieldCreationResult   `json:"fieldCreation,omitempty"`
	Outcomes      []SyncOutcome           `json:"outcomes"`
	Warning       *TooManySelectedWarning `json:"warning,omitempty"`
}

// RunEvent is emitted at each stage of a run for live observers.
type RunEvent struct {
	RunID    string `json:"runId"`
	Type     string `json:"type"`
	RecordID string `json:"recordId,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

const (
	EventRunStarted    = "run.started"
	EventFieldsEnsured = "fields.ensured"
	EventLookupDone    = "lookup.completed"
	EventRecordSynced  = "record.synced"
	EventRunCompleted  = "run.completed"
	EventRunAborted    = "run.aborted"
)

// EventSink receives run progress events. Emit must not block.
type EventSink interface {
	Emit(event RunEvent)
}

type RunnerOptions struct {
	Table   TableAPI
	Lookup  LookupAPI
	Store   runstore.Store
	Events  EventSink
	Log     *logger.Logger
	Ensurer EnsurerOptions
	Now     func() time.Time
	NewID   func() string
}

// Runner orchestrates one run end to end: resolve targets, ensure columns,
// look up external data, write cells, aggregate. Exactly one run may be
// active at a time.
type Runner struct {
	table   TableAPI
	lookup  LookupAPI
	store   runstore.Store
	events  EventSink
	log     *logger.Logger
	ensurer *Ensurer
	now     func() time.Time
	newID   func() string
	busy    atomic.Bool
}

func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Table == nil {
		return nil, fmt.Errorf("table api is required")
	}
	if opts.Lookup == nil {
		return nil, fmt.Errorf("lookup api is required")
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	if opts.Ensurer.Log == nil {
		opts.Ensurer.Log = log
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return "run_" + uuid.NewString() }
	}
	return &Runner{
		table:   opts.Table,
		lookup:  opts.Lookup,
		store:   opts.Store,
		events:  opts.Events,
		log:     log,
		ensurer: NewEnsurer(opts.Table, opts.Ensurer),
		now:     now,
		newID:   newID,
	}, nil
}

// Run executes the synchronization workflow. Only selection and lookup
// failures (and host reads the run cannot proceed without) abort; field
// creation and cell write failures degrade into the CompletionResult.
func (r *Runner) Run(ctx context.Context, req RunRequest) (RunReport, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return RunReport{}, ErrRunInProgress
	}
	defer r.busy.Store(false)

	report := RunReport{
		RunID:     r.newID(),
		Mode:      req.Mode,
		StartedAt: r.now(),
	}
	r.emit(RunEvent{RunID: report.RunID, Type: EventRunStarted})

	fields := selectedFields(req.Fields)
	if len(fields) == 0 {
		return report, r.abort(report, ErrNoFieldsSelected)
	}
	if strings.TrimSpace(req.SourceColumn) == "" {
		return report, r.abort(report, fmt.Errorf("source column is required"))
	}

	targets, warning, err := ResolveTargets(ctx, req.Mode, r.table)
	if err != nil {
		return report, r.abort(report, err)
	}
	report.Warning = warning
	if warning != nil {
		r.log.Warnf("%s", warning.String())
	}

	existing, err := r.table.ListFields(ctx)
	if err != nil {
		return report, r.abort(report, fmt.Errorf("listing table fields: %w", err))
	}
	sourceColumnID := resolveColumn(existing, req.SourceColumn)
	if sourceColumnID == "" {
		return report, r.abort(report, fmt.Errorf("source column %q not found", req.SourceColumn))
	}

	ensured := r.ensurer.Ensure(ctx, fields, existing)
	report.FieldCreation = ensured.Results
	r.emit(RunEvent{RunID: report.RunID, Type: EventFieldsEnsured, Detail: fmt.Sprintf("%d created", len(ensured.Results))})

	recordIDs := make([]string, 0, len(targets))
	for _, target := range targets {
		recordIDs = append(recordIDs, target.RecordID)
	}
	records, err := r.table.GetRecords(ctx, recordIDs)
	if err != nil {
		return report, r.abort(report, fmt.Errorf("reading records: %w", err))
	}

	sourceKeyByRecord := map[string]string{}
	var sourceKeys []string
	seen := map[string]struct{}{}
	for _, record := range records {
		key := strings.TrimSpace(fmt.Sprint(record.Cells[sourceColumnID]))
		if key == "" || key == "<nil>" {
			continue
		}
		sourceKeyByRecord[record.ID] = key
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			sourceKeys = append(sourceKeys, key)
		}
	}

	resultMap, err := r.lookup.Lookup(ctx, sourceKeys)
	if err != nil {
		return report, r.abort(report, &LookupError{Message: err.Error()})
	}
	r.emit(RunEvent{RunID: report.RunID, Type: EventLookupDone, Detail: fmt.Sprintf("%d keys resolved", len(resultMap))})

	writer := NewWriter(r.table, r.log)
	report.Outcomes = writer.Apply(ctx, targets, fields, sourceKeyByRecord, resultMap, ensured.ColumnByKey, CurrentCells(records))
	for _, outcome := range report.Outcomes {
		r.emit(RunEvent{RunID: report.RunID, Type: EventRecordSynced, RecordID: outcome.RecordID, Detail: string(outcome.Result)})
	}

	report.Result = Aggregate(report.Outcomes, !ensured.HasPermission)
	report.FinishedAt = r.now()
	r.emit(RunEvent{RunID: report.RunID, Type: EventRunCompleted, Detail: string(report.Result.Status)})
	r.saveRun(ctx, report, "")
	return report, nil
}

func (r *Runner) abort(report RunReport, err error) error {
	report.FinishedAt = r.now()
	r.emit(RunEvent{RunID: report.RunID, Type: EventRunAborted, Detail: err.Error()})
	r.saveRun(context.Background(), report, err.Error())
	return err
}

func (r *Runner) saveRun(ctx context.Context, report RunReport, runErr string) {
	if r.store == nil {
		return
	}
	warning := ""
	if report.Warning != nil {
		warning = report.Warning.String()
	}
	status := string(report.Result.Status)
	if runErr != "" {
		status = "aborted"
	}
	run := runstore.Run{
		ID:             report.RunID,
		Mode:           string(report.Mode),
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
		Status:         status,
		SuccessCount:   report.Result.SuccessCount,
		ErrorCount:     report.Result.ErrorCount,
		UnchangedCount: report.Result.UnchangedCount,
		Warning:        warning,
		Error:          runErr,
	}
	if err := r.store.Save(ctx, run); err != nil {
		r.log.Warnf("failed to persist run %s: %v", report.RunID, err)
	}
}

func (r *Runner) emit(event RunEvent) {
	if r.events == nil {
		return
	}
	r.events.Emit(event)
}

func selectedFields(fields []FieldSpec) []FieldSpec {
	selected := make([]FieldSpec, 0, len(fields))
	for _, spec := range fields {
		if spec.Checked && !spec.Disabled {
			selected = append(selected, spec)
		}
	}
	return selected
}

// resolveColumn accepts either a column ID or a display name.
func resolveColumn(existing []hosttable.Field, nameOrID string) string {
	nameOrID = strings.TrimSpace(nameOrID)
	for _, field := range existing {
		if field.ID == nameOrID {
			return field.ID
		}
	}
	for _, field := range existing {
		if field.Name == nameOrID {
			return field.ID
		}
	}
	return ""
}
