package fieldsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/gridmate/fieldsync/internal/hosttable"
	"github.com/gridmate/fieldsync/internal/logger"
	"github.com/gridmate/fieldsync/internal/lookup"
)

// Writer applies looked-up values to table cells, one record at a time,
// each record's fields in catalog order. Outcomes preserve target order.
type Writer struct {
	api TableAPI
	log *logger.Logger
}

func NewWriter(api TableAPI, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.Discard()
	}
	return &Writer{api: api, log: log}
}

// Apply writes resolved values for each target record.
//
// A field is skipped when its destination column is unresolved, the record
// has no source key, or the lookup produced no value for it. A write whose
// value equals the current cell is recorded as unchanged without calling
// the host. Individual write failures are recorded and the loop continues;
// partial success within a record is representable in FieldStatus.
//
// Record classification: any failed field makes the record failed (the user
// asked for the whole field set); otherwise at least one real write makes
// it a success; otherwise at least one unchanged no-op makes it unchanged;
// a record where every field was skipped produced nothing and counts as
// failed.
func (w *Writer) Apply(
	ctx context.Context,
	targets []RecordTarget,
	fields []FieldSpec,
	sourceKeyByRecord map[string]string,
	resultMap map[string]lookup.FieldValues,
	columnByKey map[string]string,
	currentCells map[string]map[string]any,
) []SyncOutcome {
	outcomes := make([]SyncOutcome, 0, len(targets))
	for _, target := range targets {
		outcome := SyncOutcome{
			RecordID:    target.RecordID,
			FieldStatus: make(map[string]WriteStatus, len(fields)),
		}
		values := lookup.FieldValues(nil)
		if sourceKey, ok := sourceKeyByRecord[target.RecordID]; ok {
			values = resultMap[sourceKey]
		}
		var written, unchanged, failed int
		for _, spec := range fields {
			columnID, hasColumn := columnByKey[spec.Key]
			value, hasValue := values[spec.ExternalKey]
			if !hasColumn || !hasValue {
				outcome.FieldStatus[spec.Key] = WriteStatusSkipped
				continue
			}
			if cells, ok := currentCells[target.RecordID]; ok {
				if current, ok := cells[columnID]; ok && cellValueEqual(current, value) {
					outcome.FieldStatus[spec.Key] = WriteStatusUnchanged
					unchanged++
					continue
				}
			}
			if err := w.api.SetCellValue(ctx, target.RecordID, columnID, value); err != nil {
				w.log.Warnf("write failed for record %s field %q: %v", target.RecordID, spec.DisplayName, err)
				outcome.FieldStatus[spec.Key] = WriteStatusFailed
				failed++
				continue
			}
			outcome.FieldStatus[spec.Key] = WriteStatusWritten
			written++
		}
		switch {
		case failed > 0:
			outcome.Result = RecordFailed
		case written > 0:
			outcome.Result = RecordSucceeded
		case unchanged > 0:
			outcome.Result = RecordUnchanged
		default:
			outcome.Result = RecordFailed
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// CurrentCells turns a batch record read into a recordID -> columnID ->
// value map for unchanged detection.
func CurrentCells(records []hosttable.Record) map[string]map[string]any {
	cells := make(map[string]map[string]any, len(records))
	for _, record := range records {
		cells[record.ID] = record.Cells
	}
	return cells
}

func cellValueEqual(current any, next string) bool {
	if current == nil {
		return next == ""
	}
	return strings.TrimSpace(fmt.Sprint(current)) == strings.TrimSpace(next)
}
