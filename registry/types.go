package registry

// Static tables describing the metadata types the engine knows how to track.
// A TypeDescriptor ties a metadata type name to its on-disk source
// conventions so file paths can be resolved back to components.

// TypeDescriptor describes one metadata type's source-format conventions.
type TypeDescriptor struct {
	// Name is the metadata type name, e.g. "ApexClass".
	Name string
	// Directory is the source directory that holds components of this type.
	Directory string
	// Suffix is the file suffix without the leading dot, e.g. "cls".
	// Empty for bundle types whose component is a whole directory.
	Suffix string
	// HasFolders is true for types whose components live inside named
	// folders and whose full names are "Folder/Name".
	HasFolders bool
}

// IsBundle reports whether components of this type are directories rather
// than single files.
func (d TypeDescriptor) IsBundle() bool {
	return d.Suffix == ""
}

var knownTypes = []TypeDescriptor{
	{Name: "ApexClass", Directory: "classes", Suffix: "cls"},
	{Name: "ApexTrigger", Directory: "triggers", Suffix: "trigger"},
	{Name: "ApexPage", Directory: "pages", Suffix: "page"},
	{Name: "ApexComponent", Directory: "components", Suffix: "component"},
	{Name: "AuraDefinitionBundle", Directory: "aura"},
	{Name: "LightningComponentBundle", Directory: "lwc"},
	{Name: "CustomObject", Directory: "objects", Suffix: "object"},
	{Name: "CustomTab", Directory: "tabs", Suffix: "tab"},
	{Name: "Layout", Directory: "layouts", Suffix: "layout"},
	{Name: "Flow", Directory: "flows", Suffix: "flow"},
	{Name: "PermissionSet", Directory: "permissionsets", Suffix: "permissionset"},
	{Name: "Profile", Directory: "profiles", Suffix: "profile"},
	{Name: "StaticResource", Directory: "staticresources", Suffix: "resource"},
	{Name: "CustomLabels", Directory: "labels", Suffix: "labels"},
	{Name: "EmailTemplate", Directory: "email", Suffix: "email", HasFolders: true},
	{Name: "Report", Directory: "reports", Suffix: "report", HasFolders: true},
	{Name: "Dashboard", Directory: "dashboards", Suffix: "dashboard", HasFolders: true},
	{Name: "Document", Directory: "documents", Suffix: "document", HasFolders: true},
}

// objectChildTypes maps a subdirectory inside an object's source directory to
// the metadata type of the components it holds. These are the
// object-structure types: they live inside their containing object and never
// belong to a package of their own.
var objectChildTypes = map[string]string{
	"fields":            "CustomField",
	"validationRules":   "ValidationRule",
	"recordTypes":       "RecordType",
	"listViews":         "ListView",
	"webLinks":          "WebLink",
	"fieldSets":         "FieldSet",
	"compactLayouts":    "CompactLayout",
	"businessProcesses": "BusinessProcess",
	"sharingReasons":    "SharingReason",
}

// containerTypes is the closed set of types that are intrinsically
// unpackaged container metadata. Derived from objectChildTypes.
var containerTypes = func() map[string]bool {
	set := make(map[string]bool, len(objectChildTypes))
	for _, typeName := range objectChildTypes {
		set[typeName] = true
	}
	return set
}()

var typesByName = func() map[string]TypeDescriptor {
	m := make(map[string]TypeDescriptor, len(knownTypes))
	for _, d := range knownTypes {
		m[d.Name] = d
	}
	return m
}()

var typesByDirectory = func() map[string]TypeDescriptor {
	m := make(map[string]TypeDescriptor, len(knownTypes))
	for _, d := range knownTypes {
		m[d.Directory] = d
	}
	return m
}()

// KnownTypes returns the descriptors of every known metadata type.
func KnownTypes() []TypeDescriptor {
	out := make([]TypeDescriptor, len(knownTypes))
	copy(out, knownTypes)
	return out
}

// Lookup returns the descriptor for a metadata type name.
func Lookup(name string) (TypeDescriptor, bool) {
	d, ok := typesByName[name]
	return d, ok
}

// LookupByDirectory returns the descriptor whose source directory matches dir.
func LookupByDirectory(dir string) (TypeDescriptor, bool) {
	d, ok := typesByDirectory[dir]
	return d, ok
}

// ObjectChildType returns the metadata type held by a subdirectory of an
// object's source directory ("fields" -> "CustomField"), or "" if the
// subdirectory is not an object-structure directory.
func ObjectChildType(dir string) string {
	return objectChildTypes[dir]
}

// IsContainerType reports whether the type is intrinsically unpackaged
// container metadata. Container components never carry a package name.
func IsContainerType(name string) bool {
	return containerTypes[name]
}
