package schema

import (
	"strings"

	protoskema "github.com/reoring/protoskema"
)

// Catalog is the closure of a root schema file and everything it imports.
// It is immutable once built and safe for concurrent use.
type Catalog struct {
	root     *File
	files    map[string]*File
	order    []*File
	messages map[string]*MessageDescriptor
	enums    map[string]*EnumDescriptor
	services map[string]*ServiceDescriptor
}

// Root returns the file the catalog was built from.
func (c *Catalog) Root() *File { return c.root }

// File returns the file with the given logical path, or nil.
func (c *Catalog) File(path string) *File { return c.files[path] }

// Files returns every file, dependencies before dependents.
func (c *Catalog) Files() []*File { return append([]*File(nil), c.order...) }

// FindMessage returns the message with the given full name, or nil.
func (c *Catalog) FindMessage(fullName string) *MessageDescriptor {
	return c.messages[strings.TrimPrefix(fullName, ".")]
}

// FindEnum returns the enum with the given full name, or nil.
func (c *Catalog) FindEnum(fullName string) *EnumDescriptor {
	return c.enums[strings.TrimPrefix(fullName, ".")]
}

// FindService returns the service with the given full name, or nil.
func (c *Catalog) FindService(fullName string) *ServiceDescriptor {
	return c.services[strings.TrimPrefix(fullName, ".")]
}

// LookupMessage finds a message by a name relative to the root file's
// package (for example "Person" or "Outer.Inner"), falling back to a full
// name.
func (c *Catalog) LookupMessage(name string) (*MessageDescriptor, error) {
	if !strings.HasPrefix(name, ".") {
		if md := c.messages[joinName(c.root.Package, name)]; md != nil {
			return md, nil
		}
	}
	if md := c.FindMessage(name); md != nil {
		return md, nil
	}
	return nil, protoskema.NewIssue(protoskema.CodeUnresolvedType, -1, "message %q not found in %s", name, c.root.Path)
}
