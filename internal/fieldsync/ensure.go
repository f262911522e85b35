package fieldsync

import (
	"context"
	"errors"
	"time"

	"github.com/gridmate/fieldsync/internal/hosttable"
	"github.com/gridmate/fieldsync/internal/logger"
)

const (
	defaultCreateAttempts = 2
	defaultRetryDelay     = 1000 * time.Millisecond
	defaultCreationPause  = 200 * time.Millisecond
)

// EnsurerOptions tune the field existence ensurer. Zero values take the
// defaults above.
type EnsurerOptions struct {
	RetryPolicy   RetryPolicy
	CreationPause time.Duration
	Sleep         Sleeper
	Log           *logger.Logger
}

// Ensurer makes sure every desired destination column exists, creating
// missing ones with bounded retry. It never returns an error: every
// per-field failure is recorded in the result list.
type Ensurer struct {
	api           TableAPI
	policy        RetryPolicy
	creationPause time.Duration
	sleep         Sleeper
	log           *logger.Logger
}

func NewEnsurer(api TableAPI, opts EnsurerOptions) *Ensurer {
	policy := opts.RetryPolicy
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaultCreateAttempts
	}
	if policy.Delay <= 0 {
		policy.Delay = defaultRetryDelay
	}
	pause := opts.CreationPause
	if pause <= 0 {
		pause = defaultCreationPause
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Ensurer{
		api:           api,
		policy:        policy,
		creationPause: pause,
		sleep:         sleep,
		log:           log,
	}
}

// Ensure diffs desired fields against the table's columns and creates the
// missing ones. Explicitly mapped fields are never auto-created: when the
// mapped column is gone, the writer skips them later.
func (e *Ensurer) Ensure(ctx context.Context, desired []FieldSpec, existing []hosttable.Field) EnsureResult {
	byName := make(map[string]string, len(existing))
	byID := make(map[string]struct{}, len(existing))
	for _, col := range existing {
		if _, ok := byName[col.Name]; !ok {
			byName[col.Name] = col.ID
		}
		byID[col.ID] = struct{}{}
	}

	result := EnsureResult{
		ColumnByKey: make(map[string]string, len(desired)),
	}
	var missing []FieldSpec
	for _, spec := range desired {
		if spec.MappedColumnID != "" {
			if _, ok := byID[spec.MappedColumnID]; ok {
				result.ColumnByKey[spec.Key] = spec.MappedColumnID
			} else {
				e.log.Warnf("mapped column %s for field %q not found; leaving unresolved", spec.MappedColumnID, spec.DisplayName)
			}
			continue
		}
		if columnID, ok := byName[spec.DisplayName]; ok {
			result.ColumnByKey[spec.Key] = columnID
			continue
		}
		missing = append(missing, spec)
	}

	permissionFailures := 0
	successes := 0
	for i, spec := range missing {
		if i > 0 {
			if err := e.sleep(ctx, e.creationPause); err != nil {
				break
			}
		}
		creation := e.createField(ctx, spec)
		if creation.Success {
			successes++
			if creation.FieldID != "" {
				result.ColumnByKey[spec.Key] = creation.FieldID
			}
		} else if creation.Error == "permission denied" {
			permissionFailures++
		}
		result.Results = append(result.Results, creation)
	}

	result.HasPermission = successes > 0 || permissionFailures == 0
	return result
}

func (e *Ensurer) createField(ctx context.Context, spec FieldSpec) FieldCreationResult {
	var created hosttable.Field
	attempts, err := retry(ctx, e.policy, e.sleep, func() error {
		field, createErr := e.api.CreateField(ctx, spec.DisplayName, "")
		if createErr != nil {
			return createErr
		}
		created = field
		return nil
	}, func(err error) bool {
		return errors.Is(err, hosttable.ErrPermissionDenied) || errors.Is(err, hosttable.ErrDuplicateField)
	})

	result := FieldCreationResult{
		FieldName:     spec.DisplayName,
		RetryAttempts: attempts - 1,
	}
	switch {
	case err == nil:
		result.Success = true
		result.FieldID = created.ID
	case errors.Is(err, hosttable.ErrDuplicateField):
		// Benign race: someone else created the column between the diff and
		// our create call. The column exists, so this counts as success.
		result.Success = true
		result.FieldID = e.findColumnID(ctx, spec.DisplayName)
	case errors.Is(err, hosttable.ErrPermissionDenied):
		result.Error = "permission denied"
	default:
		result.Error = err.Error()
	}
	if !result.Success {
		e.log.Warnf("failed to create field %q after %d attempt(s): %s", spec.DisplayName, attempts, result.Error)
	}
	return result
}

func (e *Ensurer) findColumnID(ctx context.Context, displayName string) string {
	fields, err := e.api.ListFields(ctx)
	if err != nil {
		e.log.Warnf("could not re-list fields to resolve %q: %v", displayName, err)
		return ""
	}
	for _, field := range fields {
		if field.Name == displayName {
			return field.ID
		}
	}
	return ""
}
