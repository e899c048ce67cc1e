package metadata

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// commitHashShape accepts abbreviated and full hex commit hashes.
var commitHashShape = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

// PreloadResult is the outcome of resolving a set of commits into a
// selection. Matched holds the cached components to pre-select;
// UnmatchedFiles holds changed files that resolved to nothing or whose
// components are absent from the cache. An empty Matched with input commits
// is an incomplete result, not an error.
type PreloadResult struct {
	Matched        []Component
	UnmatchedFiles []string
	Warnings       []string
	// AddedTypes lists metadata types auto-subscribed during resolution
	// because changed files referenced them.
	AddedTypes []string
}

// Complete reports whether the preload produced at least one match.
func (r PreloadResult) Complete() bool {
	return len(r.Matched) > 0
}

// PreloadResolver turns version-control commits into a pre-selected subset
// of the cached component inventory.
type PreloadResolver struct {
	vcs            VersionControl
	paths          PathResolver
	cache          *CacheStore
	source         InventorySource
	remoteIdentity string
}

// NewPreloadResolver wires a resolver. source may be nil, in which case
// auto-subscribed types are tracked but not fetched within the same pass.
func NewPreloadResolver(vcs VersionControl, paths PathResolver, cache *CacheStore, source InventorySource, remoteIdentity string) *PreloadResolver {
	return &PreloadResolver{
		vcs:            vcs,
		paths:          paths,
		cache:          cache,
		source:         source,
		remoteIdentity: remoteIdentity,
	}
}

// ResolvePreload runs the preload pipeline over the given commit
// identifiers. One bad commit never aborts the batch: malformed identifiers
// and collaborator failures become warnings and contribute no files.
func (p *PreloadResolver) ResolvePreload(ctx context.Context, commitIDs []string) PreloadResult {
	var result PreloadResult
	var warnMu sync.Mutex
	warn := func(format string, args ...any) {
		warnMu.Lock()
		defer warnMu.Unlock()
		result.Warnings = append(result.Warnings, fmt.Sprintf(format, args...))
	}

	if behind, err := p.vcs.BehindUpstream(); err == nil && behind != nil && behind.Count > 0 {
		log.Warnf("Local branch is %d commits behind %s; preload may miss newer changes", behind.Count, behind.Upstream)
	}

	// Gather changed files across commits, deduplicated in first-seen order.
	var files []string
	seen := make(map[string]bool)
	for _, id := range commitIDs {
		if !commitHashShape.MatchString(id) {
			warn("ignoring malformed commit identifier %q", id)
			continue
		}
		changed, err := p.vcs.ChangedFiles(id)
		if err != nil {
			warn("failed to list changed files for commit %s: %v", shortHash(id), err)
			continue
		}
		for _, f := range changed {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}

	// Scope to the project's package directories when it defines any.
	if len(files) > 0 {
		dirs, err := p.vcs.PackageDirectories()
		if err != nil {
			warn("failed to read package directories, skipping scope filter: %v", err)
		} else if len(dirs) > 0 {
			filtered := filterToDirectories(files, dirs)
			if len(filtered) == 0 {
				warn("all %d changed files fall outside the project package directories", len(files))
			}
			files = filtered
		}
	}

	// Resolve surviving files to component references.
	type fileRefs struct {
		path string
		refs []ComponentRef
	}
	var resolved []fileRefs
	typeSeen := make(map[string]bool)
	var typeOrder []string
	for _, f := range files {
		refs, err := p.paths.ComponentsForPath(f)
		if err != nil {
			warn("failed to resolve %s: %v", f, err)
			result.UnmatchedFiles = append(result.UnmatchedFiles, f)
			continue
		}
		if len(refs) == 0 {
			result.UnmatchedFiles = append(result.UnmatchedFiles, f)
			continue
		}
		resolved = append(resolved, fileRefs{path: f, refs: refs})
		for _, ref := range refs {
			if !typeSeen[ref.Type] {
				typeSeen[ref.Type] = true
				typeOrder = append(typeOrder, ref.Type)
			}
		}
	}

	// Auto-subscribe any type the changed files reference that is not yet
	// tracked. This is a precondition fix-up bound to exactly one pass:
	// newly tracked types are fetched and cached once, then matching
	// proceeds. A type that still has no cached inventory after the pass
	// simply yields unmatched files; there is no second pass.
	subscribed, err := p.cache.SubscribedTypes(p.remoteIdentity)
	if err != nil {
		warn("failed to read subscribed types: %v", err)
	}
	tracked := make(map[string]bool, len(subscribed))
	for _, t := range subscribed {
		tracked[t] = true
	}
	var missing []string
	for _, t := range typeOrder {
		if !tracked[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		added, err := p.cache.AddSubscribedTypes(p.remoteIdentity, missing...)
		if err != nil {
			warn("failed to subscribe to types %v: %v", missing, err)
		} else {
			result.AddedTypes = added
			if p.source != nil {
				for _, typeName := range added {
					rec := FetchAndReconcile(ctx, p.source, func(what string, ferr error) {
						warn("%s: %v", what, ferr)
					}, typeName)
					entry := CacheEntry{LastFetched: time.Now(), Components: rec.All()}
					if err := p.cache.SetCachedMetadata(typeName, entry); err != nil {
						warn("failed to cache inventory for %s: %v", typeName, err)
					}
				}
			}
		}
	}

	// Match references against the cached inventory by (type, fullName).
	// The cached file path may differ in format from the version-control
	// path, so paths play no part in matching.
	byKey := make(map[string]Component)
	for _, typeName := range typeOrder {
		entry, err := p.cache.GetCachedMetadata(typeName)
		if err != nil {
			warn("failed to read cached inventory for %s: %v", typeName, err)
			continue
		}
		if entry == nil {
			continue
		}
		for _, c := range entry.Components {
			byKey[c.Key()] = c
		}
	}
	matchedIDs := make(map[string]bool)
	for _, fr := range resolved {
		matchedAny := false
		for _, ref := range fr.refs {
			c, ok := byKey[ref.Key()]
			if !ok {
				continue
			}
			matchedAny = true
			if !matchedIDs[c.ID] {
				matchedIDs[c.ID] = true
				result.Matched = append(result.Matched, c)
			}
		}
		if !matchedAny {
			result.UnmatchedFiles = append(result.UnmatchedFiles, fr.path)
		}
	}

	if result.Complete() {
		log.Infof("Preload matched %d components (%d unmatched files, %d warnings)",
			len(result.Matched), len(result.UnmatchedFiles), len(result.Warnings))
	} else {
		log.Infof("Preload matched no cached components (%d unmatched files, %d warnings)",
			len(result.UnmatchedFiles), len(result.Warnings))
	}
	return result
}

// filterToDirectories keeps files that live under any of the given
// directories. Paths are compared with forward slashes.
func filterToDirectories(files, dirs []string) []string {
	prefixes := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		dir = strings.Trim(strings.ReplaceAll(dir, "\\", "/"), "/")
		if dir != "" {
			prefixes = append(prefixes, dir+"/")
		}
	}
	var out []string
	for _, f := range files {
		normalized := strings.ReplaceAll(f, "\\", "/")
		for _, prefix := range prefixes {
			if strings.HasPrefix(normalized, prefix) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func shortHash(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
