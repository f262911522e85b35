package fieldsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmate/fieldsync/internal/lookup"
	"github.com/gridmate/fieldsync/internal/runstore"
)

type sinkRecorder struct {
	events []RunEvent
}

func (s *sinkRecorder) Emit(event RunEvent) {
	s.events = append(s.events, event)
}

func runnerFixture(t *testing.T) (*fakeTable, *fakeLookup, runstore.Store, *sinkRecorder, *Runner) {
	t.Helper()
	table := newFakeTable()
	table.addField("fld_order", "Order No")
	table.addField("fld_carrier", "Carrier")
	table.addRecord("rec_1", map[string]any{"fld_order": "ORD-1"})
	table.addRecord("rec_2", map[string]any{"fld_order": "ORD-2"})
	table.picked = []string{"rec_1", "rec_2"}

	lookupClient := &fakeLookup{results: map[string]lookup.FieldValues{
		"ORD-1": {"carrier": "ACME Express"},
		"ORD-2": {"carrier": "Falcon Post"},
	}}
	store := runstore.NewMemoryStore()
	sink := &sinkRecorder{}
	rec := &sleepRecorder{}
	runner, err := NewRunner(RunnerOptions{
		Table:   table,
		Lookup:  lookupClient,
		Store:   store,
		Events:  sink,
		Ensurer: EnsurerOptions{Sleep: rec.sleep},
		Now:     func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
		NewID:   func() string { return "run_test" },
	})
	require.NoError(t, err)
	return table, lookupClient, store, sink, runner
}

func syncRequest() RunRequest {
	return RunRequest{
		Mode: ModeMulti,
		Fields: []FieldSpec{
			{Key: "carrier", DisplayName: "Carrier", ExternalKey: "carrier", Checked: true},
			{Key: "tracking_number", DisplayName: "Tracking Number", ExternalKey: "trackingNumber", Checked: false},
		},
		SourceColumn: "Order No",
	}
}

func TestRunnerHappyPath(t *testing.T) {
	table, lookupClient, store, sink, runner := runnerFixture(t)

	report, err := runner.Run(context.Background(), syncRequest())
	require.NoError(t, err)

	assert.Equal(t, "run_test", report.RunID)
	assert.Equal(t, StatusSuccess, report.Result.Status)
	assert.Equal(t, 2, report.Result.SuccessCount)
	assert.Empty(t, report.FieldCreation, "carrier column already exists")
	assert.Len(t, table.setCalls, 2)
	assert.ElementsMatch(t, []string{"ORD-1", "ORD-2"}, lookupClient.gotKeys)

	run, err := store.Get(context.Background(), "run_test")
	require.NoError(t, err)
	assert.Equal(t, string(StatusSuccess), run.Status)
	assert.Equal(t, 2, run.SuccessCount)

	require.NotEmpty(t, sink.events)
	assert.Equal(t, EventRunStarted, sink.events[0].Type)
	assert.Equal(t, EventRunCompleted, sink.events[len(sink.events)-1].Type)
}

func TestRunnerUncheckedFieldsAreNotSynced(t *testing.T) {
	table, _, _, _, runner := runnerFixture(t)

	report, err := runner.Run(context.Background(), syncRequest())
	require.NoError(t, err)

	for _, outcome := range report.Outcomes {
		_, present := outcome.FieldStatus["tracking_number"]
		assert.False(t, present)
	}
	assert.Zero(t, table.createCalls, "unchecked fields must not be created")
}

func TestRunnerNoFieldsSelected(t *testing.T) {
	_, _, store, _, runner := runnerFixture(t)
	req := syncRequest()
	for i := range req.Fields {
		req.Fields[i].Checked = false
	}

	_, err := runner.Run(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoFieldsSelected)

	run, getErr := store.Get(context.Background(), "run_test")
	require.NoError(t, getErr)
	assert.Equal(t, "aborted", run.Status)
}

func TestRunnerEmptySelectionAborts(t *testing.T) {
	table, _, _, _, runner := runnerFixture(t)
	table.picked = nil

	_, err := runner.Run(context.Background(), syncRequest())
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.Empty(t, table.setCalls)
}

func TestRunnerLookupFailureAbortsRun(t *testing.T) {
	table, lookupClient, store, _, runner := runnerFixture(t)
	lookupClient.err = assert.AnError

	_, err := runner.Run(context.Background(), syncRequest())
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.Empty(t, table.setCalls, "no writes after a failed lookup")

	run, getErr := store.Get(context.Background(), "run_test")
	require.NoError(t, getErr)
	assert.Equal(t, "aborted", run.Status)
	assert.Contains(t, run.Error, "external lookup failed")
}

func TestRunnerUnknownSourceColumnAborts(t *testing.T) {
	_, _, _, _, runner := runnerFixture(t)
	req := syncRequest()
	req.SourceColumn = "No Such Column"

	_, err := runner.Run(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No Such Column")
}

func TestRunnerSingleFlight(t *testing.T) {
	table, _, _, _, runner := runnerFixture(t)
	table.getBlocked = make(chan struct{})
	table.getEntered = make(chan struct{}, 1)

	firstDone := make(chan error, 1)
	go func() {
		_, err := runner.Run(context.Background(), syncRequest())
		firstDone <- err
	}()

	// Wait for the first run to reach the blocked record read, then try to
	// start a second one while the slot is held.
	<-table.getEntered
	_, err := runner.Run(context.Background(), syncRequest())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(table.getBlocked)
	require.NoError(t, <-firstDone)

	// The slot frees up after completion.
	_, err = runner.Run(context.Background(), syncRequest())
	require.NoError(t, err)
}
