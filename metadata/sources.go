package metadata

import (
	"context"
)

// Collaborator contracts consumed by the engine. Implementations live at the
// edges of the system (org API client, git repository, state file); the
// engine only sees these interfaces.

// InventorySource lists the components known locally and remotely for a
// metadata type. Both sides are independent, possibly slow, possibly failing
// data sources. Callers treat a failure as an empty inventory for that side
// and report it out of band; a flaky org must never abort a reconcile pass.
type InventorySource interface {
	// ListRemote returns the components of the given type known to the
	// connected org, tagged StatusRemoteOnly.
	ListRemote(ctx context.Context, typeName string) ([]Component, error)
	// ListLocal returns the components of the given type present in the
	// local project source, tagged StatusLocalOnly.
	ListLocal(ctx context.Context, typeName string) ([]Component, error)
	// ListLocalBatch lists local components for several types at once.
	// A type that fails to list is absent from the map, not an error.
	ListLocalBatch(ctx context.Context, typeNames []string) (map[string][]Component, error)
}

// Transport starts long-running retrieve and deploy operations against the
// connected org. The returned handle carries progress, cancellation, and the
// terminal result; only one operation is expected to be in flight at a time,
// enforced by the surrounding control layer.
type Transport interface {
	StartRetrieve(ctx context.Context, components []Component) (*OperationHandle, error)
	StartDeploy(ctx context.Context, components []Component) (*OperationHandle, error)
}

// UpstreamStatus describes how far the local branch is behind its upstream.
type UpstreamStatus struct {
	Count    int
	Upstream string
}

// VersionControl exposes the project's version-control history.
type VersionControl interface {
	// ChangedFiles returns the paths added, copied, modified, renamed, or
	// type-changed by the commit. Deletions are excluded. For a merge
	// commit whose first-parent diff is empty, the implementation diffs
	// against the merge base of its parents instead.
	ChangedFiles(commitID string) ([]string, error)
	// PackageDirectories returns the project's explicit source directory
	// scoping, or nil when the project defines none.
	PackageDirectories() ([]string, error)
	// BehindUpstream reports how far HEAD is behind its upstream branch,
	// or nil when no upstream is configured.
	BehindUpstream() (*UpstreamStatus, error)
}

// PathResolver maps a version-control file path to the components it
// defines. A path may resolve to zero components.
type PathResolver interface {
	ComponentsForPath(path string) ([]ComponentRef, error)
}

// StateStore persists the whole engine state as a single blob. Load of a
// missing store returns an empty blob. Implementations need not be safe for
// concurrent use; CacheStore serializes its own load-modify-save cycles.
type StateStore interface {
	Load() (StateBlob, error)
	Save(blob StateBlob) error
}

// ErrorReporter receives soft-degradation errors that must reach the
// operator without polluting data-path results.
type ErrorReporter func(context string, err error)
