package metadata

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// ReconcileResult partitions one type's components into four disjoint
// ordered lists. A full name appears in exactly one list.
type ReconcileResult struct {
	Type       string
	LocalOnly  []Component
	RemoteOnly []Component
	Synced     []Component
	Conflicts  []Component
}

// All returns every component of the result in a single list, local-only
// first, then remote-only, synced, and conflicts.
func (r ReconcileResult) All() []Component {
	out := make([]Component, 0, len(r.LocalOnly)+len(r.RemoteOnly)+len(r.Synced)+len(r.Conflicts))
	out = append(out, r.LocalOnly...)
	out = append(out, r.RemoteOnly...)
	out = append(out, r.Synced...)
	out = append(out, r.Conflicts...)
	return out
}

// Reconcile diffs a local and a remote inventory for one type. Inputs must
// already be tagged StatusLocalOnly / StatusRemoteOnly by their source; the
// partition is by full-name membership only.
//
// A local component also present remotely is retagged synced and takes the
// remote side's last-modified date and author, since the remote is
// authoritative for those fields once a component is known to both sides.
// When both sides carry a known last-modified date and they disagree, the
// component lands in Conflicts instead of Synced.
func Reconcile(typeName string, local, remote []Component) ReconcileResult {
	result := ReconcileResult{Type: typeName}

	remoteByName := make(map[string]Component, len(remote))
	for _, c := range remote {
		remoteByName[c.FullName] = c
	}
	localNames := make(map[string]bool, len(local))
	for _, c := range local {
		localNames[c.FullName] = true
	}

	for _, c := range local {
		remoteSide, onRemote := remoteByName[c.FullName]
		if !onRemote {
			result.LocalOnly = append(result.LocalOnly, c)
			continue
		}
		synced := c.Retag(StatusSynced)
		diverged := !c.LastModifiedDate.IsZero() &&
			!remoteSide.LastModifiedDate.IsZero() &&
			!c.LastModifiedDate.Equal(remoteSide.LastModifiedDate)
		synced.LastModifiedDate = remoteSide.LastModifiedDate
		synced.LastModifiedBy = remoteSide.LastModifiedBy
		if diverged {
			result.Conflicts = append(result.Conflicts, synced.Retag(StatusConflict))
			continue
		}
		result.Synced = append(result.Synced, synced)
	}

	for _, c := range remote {
		if !localNames[c.FullName] {
			result.RemoteOnly = append(result.RemoteOnly, c)
		}
	}

	log.Debugf("Reconciled %s: %d local-only, %d remote-only, %d synced, %d conflicts",
		typeName, len(result.LocalOnly), len(result.RemoteOnly), len(result.Synced), len(result.Conflicts))
	return result
}

// FetchAndReconcile fetches both inventories for a type concurrently and
// reconciles them. Either fetch failing degrades that side to an empty list;
// the failure reaches the operator through the reporter, never through the
// diff output.
func FetchAndReconcile(ctx context.Context, source InventorySource, report ErrorReporter, typeName string) ReconcileResult {
	var local, remote []Component

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		components, err := source.ListLocal(ctx, typeName)
		if err != nil {
			log.Warnf("Local inventory for %s unavailable, treating as empty: %v", typeName, err)
			reportSoft(report, "listing local "+typeName, err)
			return
		}
		local = components
	}()
	go func() {
		defer wg.Done()
		components, err := source.ListRemote(ctx, typeName)
		if err != nil {
			log.Warnf("Remote inventory for %s unavailable, treating as empty: %v", typeName, err)
			reportSoft(report, "listing remote "+typeName, err)
			return
		}
		remote = components
	}()
	wg.Wait()

	return Reconcile(typeName, local, remote)
}

func reportSoft(report ErrorReporter, context string, err error) {
	if report != nil {
		report(context, err)
	}
}
