package fieldsync

import (
	"context"
	"sync"
	"time"

	"github.com/gridmate/fieldsync/internal/hosttable"
	"github.com/gridmate/fieldsync/internal/lookup"
)

func permissionErr() error {
	return &hosttable.APIError{StatusCode: 403, Code: hosttable.CodePermissionDenied, Message: "forbidden"}
}

func duplicateErr() error {
	return &hosttable.APIError{StatusCode: 400, Code: hosttable.CodeDuplicateField, Message: "field exists"}
}

type setCall struct {
	recordID string
	fieldID  string
	value    any
}

type fakeTable struct {
	mu sync.Mutex

	fields       []hosttable.Field
	records      map[string]hosttable.Record
	activeRecord string
	picked       []string

	createErr func(name string, call int) error
	setErr    func(recordID, fieldID string) error
	listErr   error
	getErr    error

	createCalls int
	setCalls    []setCall
	getBlocked  chan struct{}
	getEntered  chan struct{}
}

func newFakeTable() *fakeTable {
	return &fakeTable{records: map[string]hosttable.Record{}}
}

func (f *fakeTable) addField(id, name string) {
	f.fields = append(f.fields, hosttable.Field{ID: id, Name: name, Type: "text"})
}

func (f *fakeTable) addRecord(id string, cells map[string]any) {
	f.records[id] = hosttable.Record{ID: id, Cells: cells}
}

func (f *fakeTable) ListFields(context.Context) ([]hosttable.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]hosttable.Field, len(f.fields))
	copy(out, f.fields)
	return out, nil
}

func (f *fakeTable) CreateField(_ context.Context, name, fieldType string) (hosttable.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		if err := f.createErr(name, f.createCalls); err != nil {
			return hosttable.Field{}, err
		}
	}
	field := hosttable.Field{ID: "fld_" + name, Name: name, Type: fieldType}
	f.fields = append(f.fields, field)
	return field, nil
}

func (f *fakeTable) GetRecords(_ context.Context, recordIDs []string) ([]hosttable.Record, error) {
	if f.getEntered != nil {
		select {
		case f.getEntered <- struct{}{}:
		default:
		}
	}
	if f.getBlocked != nil {
		<-f.getBlocked
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := make([]hosttable.Record, 0, len(recordIDs))
	for _, id := range recordIDs {
		if record, ok := f.records[id]; ok {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeTable) SetCellValue(_ context.Context, recordID, fieldID string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		if err := f.setErr(recordID, fieldID); err != nil {
			return err
		}
	}
	f.setCalls = append(f.setCalls, setCall{recordID: recordID, fieldID: fieldID, value: value})
	return nil
}

func (f *fakeTable) ActiveRecordID(context.Context) (string, error) {
	return f.activeRecord, nil
}

func (f *fakeTable) SelectRecordIDs(context.Context, int) ([]string, error) {
	return f.picked, nil
}

type fakeLookup struct {
	results map[string]lookup.FieldValues
	err     error
	gotKeys []string
}

func (f *fakeLookup) Lookup(_ context.Context, sourceKeys []string) (map[string]lookup.FieldValues, error) {
	f.gotKeys = sourceKeys
	if f.err != nil {
		return nil, f.err
	}
	if f.results == nil {
		return map[string]lookup.FieldValues{}, nil
	}
	return f.results, nil
}

// sleepRecorder is the test Sleeper: records requested delays, never waits.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, delay)
	return nil
}

func (s *sleepRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}
