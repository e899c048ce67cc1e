package gitsource

import (
	"strings"

	"github.com/zenibako/orgsync-golang/metadata"
	"github.com/zenibako/orgsync-golang/registry"
)

// ConventionResolver resolves project source paths to component references
// using the registry's directory and suffix conventions. A path that matches
// no convention resolves to nothing, which the preload pipeline reports as
// an unmatched file.
type ConventionResolver struct{}

// NewConventionResolver creates a resolver.
func NewConventionResolver() *ConventionResolver {
	return &ConventionResolver{}
}

func (c *ConventionResolver) ComponentsForPath(path string) ([]metadata.ComponentRef, error) {
	normalized := strings.ReplaceAll(path, "\\", "/")
	var segments []string
	for _, s := range strings.Split(normalized, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	// The type directory is the rightmost known directory with content
	// below it, so nested layouts like src/main/default/classes/Foo.cls
	// resolve regardless of what sits above the type directory.
	for i := len(segments) - 2; i >= 0; i-- {
		desc, ok := registry.LookupByDirectory(segments[i])
		if !ok {
			continue
		}
		return refsFor(desc, segments[i+1:]), nil
	}
	return nil, nil
}

func refsFor(desc registry.TypeDescriptor, rest []string) []metadata.ComponentRef {
	if len(rest) == 0 {
		return nil
	}

	// Bundles are directories: any file inside lwc/NotifyPanel/ belongs to
	// the NotifyPanel component.
	if desc.IsBundle() {
		return []metadata.ComponentRef{{Type: desc.Name, FullName: rest[0]}}
	}

	// Object-structure children live in subdirectories of their object:
	// objects/Invoice__c/fields/Amount__c.field-meta.xml is the CustomField
	// Invoice__c.Amount__c.
	if desc.Name == "CustomObject" && len(rest) >= 3 {
		if childType := registry.ObjectChildType(rest[1]); childType != "" {
			name := stripChildSuffix(rest[len(rest)-1])
			if name == "" {
				return nil
			}
			return []metadata.ComponentRef{{Type: childType, FullName: rest[0] + "." + name}}
		}
	}

	name, ok := stripTypeSuffix(desc, rest[len(rest)-1])
	if !ok {
		return nil
	}
	if desc.HasFolders && len(rest) >= 2 {
		return []metadata.ComponentRef{{Type: desc.Name, FullName: rest[0] + "/" + name}}
	}
	return []metadata.ComponentRef{{Type: desc.Name, FullName: name}}
}

// stripTypeSuffix strips the sidecar marker and the type suffix from a file
// name: "Foo.cls" and "Foo.cls-meta.xml" both yield "Foo". A file that does
// not carry the type's suffix is not a component of that type.
func stripTypeSuffix(desc registry.TypeDescriptor, file string) (string, bool) {
	base := strings.TrimSuffix(file, "-meta.xml")
	suffix := "." + desc.Suffix
	if !strings.HasSuffix(base, suffix) {
		return "", false
	}
	name := strings.TrimSuffix(base, suffix)
	if name == "" {
		return "", false
	}
	return name, true
}

// stripChildSuffix strips the sidecar marker and whatever child suffix
// remains: "Amount__c.field-meta.xml" yields "Amount__c".
func stripChildSuffix(file string) string {
	base := strings.TrimSuffix(file, "-meta.xml")
	idx := strings.LastIndex(base, ".")
	if idx <= 0 {
		return base
	}
	return base[:idx]
}
