package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"

	"github.com/zenibako/orgsync-golang/messages"
)

// DisplayCondition is one of the three distinct user-visible states a browse
// view can be in besides having data. Staleness, emptiness, and no-matches
// carry different recovery actions and must never collapse into a generic
// "nothing to show".
type DisplayCondition string

const (
	ConditionOK DisplayCondition = "ok"
	// ConditionStale: cached data was synced against a different org.
	ConditionStale DisplayCondition = "stale"
	// ConditionEmpty: never synced, or no inventory cached for the type.
	ConditionEmpty DisplayCondition = "empty"
	// ConditionNoMatches: a preload resolved to no cached components.
	ConditionNoMatches DisplayCondition = "no-matches"
)

// StaleCacheChoice is the operator's answer to the stale cache prompt.
type StaleCacheChoice string

const (
	ChoiceResync       StaleCacheChoice = "resync"
	ChoiceBrowseCached StaleCacheChoice = "browse_cached"
	ChoiceClearCache   StaleCacheChoice = "clear_cache"
)

// Engine ties the reconciler, cache store, selection model, and operation
// runner together against one connected org.
type Engine struct {
	source         InventorySource
	cache          *CacheStore
	selection      *SelectionModel
	runner         *Runner
	report         ErrorReporter
	remoteIdentity string
	browsedType    string
}

// NewEngine wires an engine over the given collaborators. The selection is
// hooked to the cache so a wholesale entry replace invalidates it before any
// dangling IDs can be observed.
func NewEngine(source InventorySource, transport Transport, store StateStore) *Engine {
	e := &Engine{
		source:    source,
		cache:     NewCacheStore(store),
		selection: NewSelectionModel(),
		runner:    NewRunner(transport),
	}
	e.cache.OnReplace(func(typeName string) {
		e.selection.Invalidate("cache replaced for " + typeName)
	})
	return e
}

// Cache returns the engine's cache store.
func (e *Engine) Cache() *CacheStore { return e.cache }

// Selection returns the engine's selection model.
func (e *Engine) Selection() *SelectionModel { return e.selection }

// Runner returns the engine's operation runner.
func (e *Engine) Runner() *Runner { return e.runner }

// SetErrorReporter sets where soft-degradation errors are surfaced.
func (e *Engine) SetErrorReporter(report ErrorReporter) {
	e.report = report
}

// Connect records the identity of the org the engine is now talking to.
func (e *Engine) Connect(remoteIdentity string) {
	e.remoteIdentity = remoteIdentity
	if e.cache.IsStale(remoteIdentity) {
		log.Warnf("Cached metadata is stale: last sync was %s", e.cache.LastSyncFormatted())
	}
}

// RemoteIdentity returns the currently connected org identity.
func (e *Engine) RemoteIdentity() string {
	return e.remoteIdentity
}

// SetBrowsedType records which metadata type the operator is browsing.
func (e *Engine) SetBrowsedType(typeName string) {
	e.browsedType = typeName
}

// SubscribeTypes adds types to the tracked set for the connected org and
// returns the ones actually added.
func (e *Engine) SubscribeTypes(types ...string) ([]string, error) {
	return e.cache.AddSubscribedTypes(e.remoteIdentity, types...)
}

// UnsubscribeType drops a type from the tracked set. Dropping the type
// currently browsed invalidates the selection, since its IDs point at
// components that are no longer trackable.
func (e *Engine) UnsubscribeType(typeName string) error {
	if err := e.cache.RemoveSubscribedType(e.remoteIdentity, typeName); err != nil {
		return err
	}
	if typeName == e.browsedType {
		e.selection.Invalidate("browsed type " + typeName + " unsubscribed")
	}
	return nil
}

// SyncType fetches and reconciles one type and replaces its cache entry.
func (e *Engine) SyncType(ctx context.Context, typeName string) (ReconcileResult, error) {
	rec := FetchAndReconcile(ctx, e.source, e.report, typeName)
	entry := CacheEntry{LastFetched: time.Now(), Components: rec.All()}
	if err := e.cache.SetCachedMetadata(typeName, entry); err != nil {
		return rec, err
	}
	return rec, nil
}

// SyncAll syncs every given type against the connected org. The local side
// comes from one batched listing; remote fetches run concurrently to bound
// latency. Cache writes are dispatched afterwards and the cache store
// sequences them, so none is lost.
func (e *Engine) SyncAll(ctx context.Context, types []string) error {
	if e.remoteIdentity == "" {
		return fmt.Errorf("not connected to an org")
	}

	locals, err := e.source.ListLocalBatch(ctx, types)
	if err != nil {
		log.Warnf("Local inventories unavailable, treating all as empty: %v", err)
		reportSoft(e.report, "listing local inventories", err)
		locals = nil
	}

	remotes := make([][]Component, len(types))
	var wg sync.WaitGroup
	for i, typeName := range types {
		wg.Add(1)
		go func(i int, typeName string) {
			defer wg.Done()
			components, err := e.source.ListRemote(ctx, typeName)
			if err != nil {
				log.Warnf("Remote inventory for %s unavailable, treating as empty: %v", typeName, err)
				reportSoft(e.report, "listing remote "+typeName, err)
				return
			}
			remotes[i] = components
		}(i, typeName)
	}
	wg.Wait()

	fetched := time.Now()
	for i, typeName := range types {
		rec := Reconcile(typeName, locals[typeName], remotes[i])
		entry := CacheEntry{LastFetched: fetched, Components: rec.All()}
		if err := e.cache.SetCachedMetadata(typeName, entry); err != nil {
			return fmt.Errorf("failed to cache %s: %v", typeName, err)
		}
	}
	if err := e.cache.RecordSync(e.remoteIdentity, types); err != nil {
		return err
	}
	log.Infof("Synced %d types against %s", len(types), e.remoteIdentity)
	return nil
}

// CacheCondition classifies the browse state for a type: stale, empty, or ok.
func (e *Engine) CacheCondition(typeName string) DisplayCondition {
	if e.cache.IsStale(e.remoteIdentity) {
		return ConditionStale
	}
	entry, err := e.cache.GetCachedMetadata(typeName)
	if err != nil {
		log.Warnf("Failed to read cache for %s, treating as empty: %v", typeName, err)
		return ConditionEmpty
	}
	if entry == nil || len(entry.Components) == 0 {
		return ConditionEmpty
	}
	return ConditionOK
}

// ApplyPreload replaces the selection with a preload result's matches.
// A match-less preload leaves the selection untouched and reports
// no-matches, distinct from the cache being stale or empty.
func (e *Engine) ApplyPreload(result PreloadResult) DisplayCondition {
	if !result.Complete() {
		return ConditionNoMatches
	}
	e.selection.SelectAll(result.Matched)
	return ConditionOK
}

// RetrieveSelection retrieves the selected components out of the pool.
// An empty selection is an expected condition reported as a typed failure.
func (e *Engine) RetrieveSelection(ctx context.Context, pool []Component, onProgress func(messages.ProgressUpdate)) messages.OperationResult {
	selected := e.selection.SelectedComponents(pool)
	if len(selected) == 0 {
		return messages.Failure("selection is empty; nothing to retrieve")
	}
	return e.runner.Retrieve(ctx, selected, onProgress)
}

// DeploySelection deploys the selected components out of the pool.
func (e *Engine) DeploySelection(ctx context.Context, pool []Component, onProgress func(messages.ProgressUpdate)) messages.OperationResult {
	selected := e.selection.SelectedComponents(pool)
	if len(selected) == 0 {
		return messages.Failure("selection is empty; nothing to deploy")
	}
	return e.runner.Deploy(ctx, selected, onProgress)
}

// PromptStaleCacheAction asks the operator what to do about a stale cache.
func (e *Engine) PromptStaleCacheAction() (StaleCacheChoice, error) {
	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Cached metadata was synced against a different org (last sync: %s)", e.cache.LastSyncFormatted())).
				Options(
					huh.NewOption("Re-sync against the connected org", string(ChoiceResync)),
					huh.NewOption("Browse the stale cache anyway", string(ChoiceBrowseCached)),
					huh.NewOption("Clear the cached metadata", string(ChoiceClearCache)),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("failed to get stale cache choice: %v", err)
	}
	return StaleCacheChoice(choice), nil
}
