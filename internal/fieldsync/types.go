package fieldsync

import (
	"context"

	"github.com/gridmate/fieldsync/internal/hosttable"
	"github.com/gridmate/fieldsync/internal/lookup"
)

// Category tags a catalog field. The set is closed; anything else coerces
// to CategoryBasic at registry load.
type Category string

const (
	CategoryBasic     Category = "basic"
	CategoryContact   Category = "contact"
	CategoryLogistics Category = "logistics"
	CategoryTimeline  Category = "timeline"
)

// KnownCategory reports whether c is one of the closed category set.
func KnownCategory(c Category) bool {
	switch c {
	case CategoryBasic, CategoryContact, CategoryLogistics, CategoryTimeline:
		return true
	}
	return false
}

// FieldSpec is one candidate synchronizable column from the field catalog.
type FieldSpec struct {
	Key            string   `json:"key" yaml:"key"`
	DisplayName    string   `json:"displayName" yaml:"displayName"`
	ExternalKey    string   `json:"externalKey" yaml:"externalKey"`
	Category       Category `json:"category" yaml:"category"`
	Checked        bool     `json:"checked" yaml:"checked"`
	Disabled       bool     `json:"disabled" yaml:"disabled"`
	MappedColumnID string   `json:"mappedColumnId,omitempty" yaml:"mappedColumnId,omitempty"`
}

// RecordTarget identifies one record in scope for a run.
type RecordTarget struct {
	RecordID string `json:"recordId"`
}

// FieldCreationResult is the outcome of ensuring one missing column.
type FieldCreationResult struct {
	FieldName     string `json:"fieldName"`
	FieldID       string `json:"fieldId,omitempty"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	RetryAttempts int    `json:"retryAttempts"`
}

// EnsureResult is what the field existence ensurer hands back to the run.
type EnsureResult struct {
	Results       []FieldCreationResult
	HasPermission bool
	// ColumnByKey maps field keys to resolved column IDs: matched, created,
	// or explicitly mapped. Keys without a resolved column are absent.
	ColumnByKey map[string]string
}

// WriteStatus classifies one field write within one record.
type WriteStatus string

const (
	WriteStatusWritten   WriteStatus = "written"
	WriteStatusUnchanged WriteStatus = "unchanged"
	WriteStatusSkipped   WriteStatus = "skipped"
	WriteStatusFailed    WriteStatus = "failed"
)

// RecordResult classifies one record after all its field writes.
type RecordResult string

const (
	RecordSucceeded RecordResult = "success"
	RecordFailed    RecordResult = "failed"
	RecordUnchanged RecordResult = "unchanged"
)

// SyncOutcome is the per-record result of the write stage.
type SyncOutcome struct {
	RecordID    string                 `json:"recordId"`
	FieldStatus map[string]WriteStatus `json:"fieldStatus"`
	Result      RecordResult           `json:"result"`
}

// Status is the aggregate verdict of a run.
type Status string

const (
	StatusSuccess      Status = "success"
	StatusPartial      Status = "partial"
	StatusFailed       Status = "failed"
	StatusNoPermission Status = "no_permission"
	StatusNoChange     Status = "no_change"
)

// CompletionResult is the terminal artifact of a run, shown to the user.
type CompletionResult struct {
	Status         Status `json:"status"`
	SuccessCount   int    `json:"successCount"`
	ErrorCount     int    `json:"errorCount"`
	UnchangedCount int    `json:"unchangedCount"`
}

// TableAPI is the slice of the host table surface the workflow needs.
// *hosttable.Client satisfies it; tests substitute fakes.
type TableAPI interface {
	ListFields(ctx context.Context) ([]hosttable.Field, error)
	CreateField(ctx context.Context, name, fieldType string) (hosttable.Field, error)
	GetRecords(ctx context.Context, recordIDs []string) ([]hosttable.Record, error)
	SetCellValue(ctx context.Context, recordID, fieldID string, value any) error
	ActiveRecordID(ctx context.Context) (string, error)
	SelectRecordIDs(ctx context.Context, limit int) ([]string, error)
}

// LookupAPI resolves source keys to external field values.
// *lookup.Client satisfies it.
type LookupAPI interface {
	Lookup(ctx context.Context, sourceKeys []string) (map[string]lookup.FieldValues, error)
}
