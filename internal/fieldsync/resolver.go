package fieldsync

import (
	"context"
	"strings"
)

// SelectionMode picks how a run's records come into scope.
type SelectionMode string

const (
	ModeSingle SelectionMode = "single"
	ModeMulti  SelectionMode = "multi"
)

// MaxSelection caps a single run. Selections beyond the cap are truncated
// with a TooManySelectedWarning.
const MaxSelection = 50

// ResolveTargets determines the records in scope for a run.
//
// Single mode returns exactly the focused record, or ErrNoSelection when
// nothing is focused. Multi mode delegates to the host's record picker and
// returns whatever the user confirmed, or ErrNoSelection for an empty
// confirmation. The warning is non-nil when the selection was truncated.
func ResolveTargets(ctx context.Context, mode SelectionMode, api TableAPI) ([]RecordTarget, *TooManySelectedWarning, error) {
	switch mode {
	case ModeSingle:
		recordID, err := api.ActiveRecordID(ctx)
		if err != nil {
			return nil, nil, err
		}
		if strings.TrimSpace(recordID) == "" {
			return nil, nil, ErrNoSelection
		}
		return []RecordTarget{{RecordID: recordID}}, nil, nil
	case ModeMulti:
		recordIDs, err := api.SelectRecordIDs(ctx, MaxSelection)
		if err != nil {
			return nil, nil, err
		}
		return capTargets(recordIDs)
	default:
		return nil, nil, ErrNoSelection
	}
}

func capTargets(recordIDs []string) ([]RecordTarget, *TooManySelectedWarning, error) {
	cleaned := make([]string, 0, len(recordIDs))
	for _, id := range recordIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		cleaned = append(cleaned, id)
	}
	if len(cleaned) == 0 {
		return nil, nil, ErrNoSelection
	}
	var warning *TooManySelectedWarning
	if len(cleaned) > MaxSelection {
		warning = &TooManySelectedWarning{Supplied: len(cleaned), Cap: MaxSelection}
		cleaned = cleaned[:MaxSelection]
	}
	targets := make([]RecordTarget, 0, len(cleaned))
	for _, id := range cleaned {
		targets = append(targets, RecordTarget{RecordID: id})
	}
	return targets, warning, nil
}
