package metadata

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/zenibako/orgsync-golang/messages"
)

// Scripted collaborator doubles for testing the engine without an org, a
// git repository, or a transport.

// MockInventorySource serves canned local and remote inventories with
// per-type error injection.
type MockInventorySource struct {
	mu        sync.Mutex
	Local     map[string][]Component
	Remote    map[string][]Component
	LocalErr  map[string]error
	RemoteErr map[string]error
	Calls     []string
}

// NewMockInventorySource creates an empty source.
func NewMockInventorySource() *MockInventorySource {
	return &MockInventorySource{
		Local:     make(map[string][]Component),
		Remote:    make(map[string][]Component),
		LocalErr:  make(map[string]error),
		RemoteErr: make(map[string]error),
	}
}

func (m *MockInventorySource) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// CallLog returns the calls recorded so far.
func (m *MockInventorySource) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

func (m *MockInventorySource) ListLocal(_ context.Context, typeName string) ([]Component, error) {
	m.record("local:" + typeName)
	if err := m.LocalErr[typeName]; err != nil {
		return nil, err
	}
	return append([]Component(nil), m.Local[typeName]...), nil
}

func (m *MockInventorySource) ListRemote(_ context.Context, typeName string) ([]Component, error) {
	m.record("remote:" + typeName)
	if err := m.RemoteErr[typeName]; err != nil {
		return nil, err
	}
	return append([]Component(nil), m.Remote[typeName]...), nil
}

func (m *MockInventorySource) ListLocalBatch(ctx context.Context, typeNames []string) (map[string][]Component, error) {
	m.record("local-batch:" + strings.Join(typeNames, ","))
	out := make(map[string][]Component, len(typeNames))
	for _, typeName := range typeNames {
		components, err := m.ListLocal(ctx, typeName)
		if err != nil {
			// Degrade-soft contract: a failing type is absent, not fatal.
			continue
		}
		out[typeName] = components
	}
	return out, nil
}

// MockVersionControl serves canned per-commit change lists.
type MockVersionControl struct {
	Files          map[string][]string
	Errs           map[string]error
	PackageDirs    []string
	PackageDirsErr error
	Behind         *UpstreamStatus
	BehindErr      error
}

// NewMockVersionControl creates an empty version-control double.
func NewMockVersionControl() *MockVersionControl {
	return &MockVersionControl{
		Files: make(map[string][]string),
		Errs:  make(map[string]error),
	}
}

func (m *MockVersionControl) ChangedFiles(commitID string) ([]string, error) {
	if err := m.Errs[commitID]; err != nil {
		return nil, err
	}
	return append([]string(nil), m.Files[commitID]...), nil
}

func (m *MockVersionControl) PackageDirectories() ([]string, error) {
	if m.PackageDirsErr != nil {
		return nil, m.PackageDirsErr
	}
	return append([]string(nil), m.PackageDirs...), nil
}

func (m *MockVersionControl) BehindUpstream() (*UpstreamStatus, error) {
	if m.BehindErr != nil {
		return nil, m.BehindErr
	}
	return m.Behind, nil
}

// MockPathResolver maps paths to canned component references.
type MockPathResolver struct {
	Mapping map[string][]ComponentRef
	Errs    map[string]error
}

// NewMockPathResolver creates an empty resolver double.
func NewMockPathResolver() *MockPathResolver {
	return &MockPathResolver{
		Mapping: make(map[string][]ComponentRef),
		Errs:    make(map[string]error),
	}
}

func (m *MockPathResolver) ComponentsForPath(path string) ([]ComponentRef, error) {
	if err := m.Errs[path]; err != nil {
		return nil, err
	}
	return append([]ComponentRef(nil), m.Mapping[path]...), nil
}

// MockTransport plays a scripted progress sequence and finishes with a
// configured result. Cancellation between steps finishes with a cancelled
// result instead.
type MockTransport struct {
	mu           sync.Mutex
	Script       []messages.ProgressUpdate
	Result       messages.OperationResult
	StartErr     error
	PanicOnStart bool
	StepDelay    time.Duration
	CancelCalls  int
	Started      [][]Component
}

// NewMockTransport creates a transport that immediately succeeds.
func NewMockTransport() *MockTransport {
	return &MockTransport{Result: messages.Succeeded("done")}
}

// CancelCount returns how many times the transport's cancel action ran.
func (t *MockTransport) CancelCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.CancelCalls
}

func (t *MockTransport) StartRetrieve(ctx context.Context, components []Component) (*OperationHandle, error) {
	return t.start(ctx, components)
}

func (t *MockTransport) StartDeploy(ctx context.Context, components []Component) (*OperationHandle, error) {
	return t.start(ctx, components)
}

func (t *MockTransport) start(_ context.Context, components []Component) (*OperationHandle, error) {
	if t.PanicOnStart {
		panic("transport exploded")
	}
	if t.StartErr != nil {
		return nil, t.StartErr
	}

	t.mu.Lock()
	t.Started = append(t.Started, components)
	t.mu.Unlock()

	cancelled := make(chan struct{})
	var cancelOnce sync.Once
	handle := NewOperationHandle(func() error {
		t.mu.Lock()
		t.CancelCalls++
		t.mu.Unlock()
		cancelOnce.Do(func() { close(cancelled) })
		return nil
	})

	go func() {
		for _, update := range t.Script {
			select {
			case <-cancelled:
				handle.Finish(messages.Cancelled("operation cancelled"))
				return
			default:
			}
			if t.StepDelay > 0 {
				time.Sleep(t.StepDelay)
			}
			handle.Publish(update)
		}
		select {
		case <-cancelled:
			handle.Finish(messages.Cancelled("operation cancelled"))
		default:
			handle.Finish(t.Result)
		}
	}()
	return handle, nil
}
