package metadata

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// CacheEntry is the last-fetched inventory for one metadata type. Entries
// are replaced wholesale on every sync, never merged field by field.
type CacheEntry struct {
	LastFetched time.Time   `json:"lastFetched"`
	Components  []Component `json:"components"`
}

// SyncRecord records the last full sync: which org it ran against, when,
// and which types it covered. At most one exists per state blob.
type SyncRecord struct {
	RemoteIdentity string    `json:"remoteIdentity"`
	Timestamp      time.Time `json:"timestamp"`
	Types          []string  `json:"types"`
}

// UIPreferences is the persisted display preference record.
type UIPreferences struct {
	ViewScope      string `json:"viewScope,omitempty"`
	SelectionScope string `json:"selectionScope,omitempty"`
}

// StateBlob is the single persisted state unit: sync record, per-type cache
// entries, UI preferences, and per-org subscribed type lists. It is always
// loaded and saved as a whole to avoid cross-field races.
type StateBlob struct {
	SchemaVersion   int                   `json:"schemaVersion"`
	Sync            *SyncRecord           `json:"sync,omitempty"`
	Cache           map[string]CacheEntry `json:"cache,omitempty"`
	Preferences     UIPreferences         `json:"preferences,omitempty"`
	SubscribedTypes map[string][]string   `json:"subscribedTypes,omitempty"`
}

// CacheStore owns the persisted state blob. Every mutation is a
// load-modify-save cycle under one mutex, so concurrently dispatched cache
// writes are sequenced and none is lost.
type CacheStore struct {
	store      StateStore
	mu         sync.Mutex
	generation int
	onReplace  func(typeName string)
}

// NewCacheStore creates a cache store over the given persistence layer.
func NewCacheStore(store StateStore) *CacheStore {
	return &CacheStore{store: store}
}

// OnReplace registers a hook invoked after a type's cache entry has been
// replaced wholesale. The selection model hangs its invalidation off this.
func (c *CacheStore) OnReplace(hook func(typeName string)) {
	c.onReplace = hook
}

// Generation returns the current cache generation. It increments on every
// wholesale entry replace; component IDs are only valid within one
// generation.
func (c *CacheStore) Generation() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// GetCachedMetadata returns the cache entry for a type, or nil when the type
// has never been fetched.
func (c *CacheStore) GetCachedMetadata(typeName string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	blob, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %v", err)
	}
	entry, ok := blob.Cache[typeName]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// SetCachedMetadata replaces the entry for a type wholesale and bumps the
// cache generation.
func (c *CacheStore) SetCachedMetadata(typeName string, entry CacheEntry) error {
	c.mu.Lock()
	blob, err := c.store.Load()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to load state: %v", err)
	}
	if blob.Cache == nil {
		blob.Cache = make(map[string]CacheEntry)
	}
	blob.Cache[typeName] = entry
	if err := c.store.Save(blob); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to save state: %v", err)
	}
	c.generation++
	hook := c.onReplace
	c.mu.Unlock()

	log.Debugf("Cached %d components for %s", len(entry.Components), typeName)
	if hook != nil {
		hook(typeName)
	}
	return nil
}

// RecordSync stores the sync record for a completed full sync.
func (c *CacheStore) RecordSync(remoteIdentity string, types []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	blob, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load state: %v", err)
	}
	sorted := append([]string(nil), types...)
	sort.Strings(sorted)
	blob.Sync = &SyncRecord{
		RemoteIdentity: remoteIdentity,
		Timestamp:      time.Now(),
		Types:          sorted,
	}
	if err := c.store.Save(blob); err != nil {
		return fmt.Errorf("failed to save state: %v", err)
	}
	log.Infof("Recorded sync against %s covering %d types", remoteIdentity, len(sorted))
	return nil
}

// SyncRecord returns the last sync record, or nil when never synced.
func (c *CacheStore) SyncRecord() (*SyncRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	blob, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %v", err)
	}
	return blob.Sync, nil
}

// IsStale reports whether the cached inventories were fetched from a
// different org than the one currently connected. A never-synced state is
// empty, not stale.
func (c *CacheStore) IsStale(currentRemoteIdentity string) bool {
	record, err := c.SyncRecord()
	if err != nil {
		log.Warnf("Failed to read sync record, treating cache as empty: %v", err)
		return false
	}
	if record == nil {
		return false
	}
	return record.RemoteIdentity != currentRemoteIdentity
}

// LastSyncFormatted renders the last sync for display.
func (c *CacheStore) LastSyncFormatted() string {
	record, err := c.SyncRecord()
	if err != nil || record == nil {
		return "never synced"
	}
	return fmt.Sprintf("%s against %s", record.Timestamp.Format("2006-01-02 15:04:05"), record.RemoteIdentity)
}

// SubscribedTypes returns the tracked type list for an org identity.
func (c *CacheStore) SubscribedTypes(remoteIdentity string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	blob, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %v", err)
	}
	return blob.SubscribedTypes[remoteIdentity], nil
}

// AddSubscribedTypes adds any of the given types not already tracked for the
// org identity and returns the ones that were actually added.
func (c *CacheStore) AddSubscribedTypes(remoteIdentity string, types ...string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	blob, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %v", err)
	}
	existing := make(map[string]bool)
	for _, t := range blob.SubscribedTypes[remoteIdentity] {
		existing[t] = true
	}
	var added []string
	for _, t := range types {
		if !existing[t] {
			existing[t] = true
			added = append(added, t)
		}
	}
	if len(added) == 0 {
		return nil, nil
	}
	if blob.SubscribedTypes == nil {
		blob.SubscribedTypes = make(map[string][]string)
	}
	blob.SubscribedTypes[remoteIdentity] = append(blob.SubscribedTypes[remoteIdentity], added...)
	sort.Strings(blob.SubscribedTypes[remoteIdentity])
	if err := c.store.Save(blob); err != nil {
		return nil, fmt.Errorf("failed to save state: %v", err)
	}
	log.Infof("Subscribed to %d new types for %s: %v", len(added), remoteIdentity, added)
	return added, nil
}

// RemoveSubscribedType drops a type from the tracked list for an org
// identity. Removing a type that was not tracked is a no-op.
func (c *CacheStore) RemoveSubscribedType(remoteIdentity, typeName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	blob, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load state: %v", err)
	}
	current := blob.SubscribedTypes[remoteIdentity]
	kept := current[:0]
	for _, t := range current {
		if t != typeName {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(current) {
		return nil
	}
	blob.SubscribedTypes[remoteIdentity] = kept
	if err := c.store.Save(blob); err != nil {
		return fmt.Errorf("failed to save state: %v", err)
	}
	return nil
}

// Clear drops every cache entry and the sync record, leaving subscriptions
// and preferences intact. The state returns to empty, not stale.
func (c *CacheStore) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	blob, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load state: %v", err)
	}
	blob.Cache = nil
	blob.Sync = nil
	if err := c.store.Save(blob); err != nil {
		return fmt.Errorf("failed to save state: %v", err)
	}
	c.generation++
	log.Info("Cleared cached metadata and sync record")
	return nil
}

// Preferences returns the persisted UI preference record.
func (c *CacheStore) Preferences() (UIPreferences, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	blob, err := c.store.Load()
	if err != nil {
		return UIPreferences{}, fmt.Errorf("failed to load state: %v", err)
	}
	return blob.Preferences, nil
}

// SetPreferences stores the UI preference record.
func (c *CacheStore) SetPreferences(prefs UIPreferences) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	blob, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load state: %v", err)
	}
	blob.Preferences = prefs
	if err := c.store.Save(blob); err != nil {
		return fmt.Errorf("failed to save state: %v", err)
	}
	return nil
}
