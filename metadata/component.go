package metadata

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/zenibako/orgsync-golang/registry"
)

// Status is the lifecycle status of a component relative to the local and
// remote inventories.
type Status string

const (
	StatusLocalOnly  Status = "local-only"
	StatusRemoteOnly Status = "remote-only"
	StatusSynced     Status = "synced"
	StatusConflict   Status = "conflict"
)

// Component is one addressable configuration object on the remote org,
// identified by (Type, FullName). Components are values: a status transition
// produces a new component, never a mutation of an existing one.
type Component struct {
	// ID is a synthetic identifier minted when the component is
	// materialized. It is stable within one sync generation only; a
	// wholesale cache replace invalidates previously issued IDs.
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	FullName         string    `json:"fullName"`
	FilePath         string    `json:"filePath,omitempty"`
	LastModifiedDate time.Time `json:"lastModifiedDate,omitzero"`
	LastModifiedBy   string    `json:"lastModifiedBy,omitempty"`
	PackageName      string    `json:"packageName,omitempty"`
	IsThirdParty     bool      `json:"isThirdParty,omitempty"`
	Status           Status    `json:"status"`
}

// NewComponent materializes a component with a fresh synthetic ID and a
// package name derived from its full name.
func NewComponent(typeName, fullName string, status Status) Component {
	c := Component{
		ID:       ulid.Make().String(),
		Type:     typeName,
		FullName: fullName,
		Status:   status,
	}
	c.PackageName, c.IsThirdParty = derivePackage(typeName, fullName)
	return c
}

// Key returns the identity key used to match components across the local and
// remote inventories. File paths are not part of identity since their format
// differs between sources.
func (c Component) Key() string {
	return c.Type + ":" + c.FullName
}

// Retag returns a copy of the component with a new status.
func (c Component) Retag(status Status) Component {
	c.Status = status
	return c
}

// namespaceSuffixes are the well-known trailing markers on custom full names.
// They use the same "__" separator as a namespace prefix and must be ignored
// when looking for one.
var namespaceSuffixes = []string{"__c", "__r", "__mdt", "__e", "__b", "__x"}

// derivePackage extracts a package namespace from a full name matching
// <Namespace>__<Rest>. Container types never carry a package. A name with no
// namespace prefix belongs to the org's own unpackaged namespace.
func derivePackage(typeName, fullName string) (string, bool) {
	if registry.IsContainerType(typeName) {
		return "", false
	}
	trimmed := fullName
	for _, suffix := range namespaceSuffixes {
		if strings.HasSuffix(trimmed, suffix) {
			trimmed = strings.TrimSuffix(trimmed, suffix)
			break
		}
	}
	idx := strings.Index(trimmed, "__")
	if idx <= 0 {
		return "", false
	}
	return trimmed[:idx], true
}

// ComponentRef is a (type, fullName) pair produced by path resolution,
// before it has been matched against a materialized inventory.
type ComponentRef struct {
	Type     string `json:"type"`
	FullName string `json:"fullName"`
}

// Key returns the same identity key format as Component.Key.
func (r ComponentRef) Key() string {
	return r.Type + ":" + r.FullName
}
