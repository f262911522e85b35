package fieldsync

import (
	"fmt"
	"sort"
	"strings"
)

var statusLabels = map[Status]string{
	StatusSuccess:      "All records synchronized",
	StatusPartial:      "Some records failed",
	StatusFailed:       "Synchronization failed",
	StatusNoPermission: "No permission to modify the table",
	StatusNoChange:     "Everything already up to date",
}

// RenderText renders a run report as the short human-readable summary the
// CLI prints.
func (r RunReport) RenderText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s)\n", r.RunID, r.Mode)
	label := statusLabels[r.Result.Status]
	if label == "" {
		label = string(r.Result.Status)
	}
	fmt.Fprintf(&b, "status: %s\n", label)
	fmt.Fprintf(&b, "records: %d ok, %d failed, %d unchanged\n",
		r.Result.SuccessCount, r.Result.ErrorCount, r.Result.UnchangedCount)
	if r.Warning != nil {
		fmt.Fprintf(&b, "warning: %s\n", r.Warning.String())
	}
	if len(r.FieldCreation) > 0 {
		b.WriteString("created fields:\n")
		for _, creation := range r.FieldCreation {
			if creation.Success {
				fmt.Fprintf(&b, "  %s: ok", creation.FieldName)
			} else {
				fmt.Fprintf(&b, "  %s: %s", creation.FieldName, creation.Error)
			}
			if creation.RetryAttempts > 0 {
				fmt.Fprintf(&b, " (%d retries)", creation.RetryAttempts)
			}
			b.WriteString("\n")
		}
	}
	failed := failedRecords(r.Outcomes)
	if len(failed) > 0 {
		fmt.Fprintf(&b, "failed records: %s\n", strings.Join(failed, ", "))
	}
	return b.String()
}

func failedRecords(outcomes []SyncOutcome) []string {
	var ids []string
	for _, outcome := range outcomes {
		if outcome.Result == RecordFailed {
			ids = append(ids, outcome.RecordID)
		}
	}
	sort.Strings(ids)
	return ids
}
