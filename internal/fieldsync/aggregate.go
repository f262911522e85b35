package fieldsync

// Aggregate reduces per-record outcomes into the run's terminal result.
//
// Rules, in priority order: permission denied with nothing written wins;
// then all-success, all-failure, mixed, and finally nothing-changed.
// The three counts always partition the outcome list exhaustively.
func Aggregate(outcomes []SyncOutcome, permissionDenied bool) CompletionResult {
	result := CompletionResult{}
	for _, outcome := range outcomes {
		switch outcome.Result {
		case RecordSucceeded:
			result.SuccessCount++
		case RecordUnchanged:
			result.UnchangedCount++
		default:
			result.ErrorCount++
		}
	}

	switch {
	case permissionDenied && result.SuccessCount == 0:
		result.Status = StatusNoPermission
	case result.ErrorCount == 0 && result.UnchangedCount == 0 && result.SuccessCount > 0:
		result.Status = StatusSuccess
	case result.SuccessCount == 0 && result.ErrorCount > 0:
		result.Status = StatusFailed
	case result.SuccessCount > 0 && result.ErrorCount > 0:
		result.Status = StatusPartial
	case result.SuccessCount > 0:
		// Some records wrote, the rest were already current.
		result.Status = StatusPartial
	default:
		result.Status = StatusNoChange
	}
	return result
}
