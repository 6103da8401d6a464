// Package payloads holds the attack string catalog.
//
// The built-in catalog is embedded at compile time and decoded once. A
// catalog is immutable after loading: every accessor returns copies.
package payloads

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/waftester/greenapi/pkg/jsonutil"
)

// Built-in suite names.
const (
	SQLInjection     = "sqlInjection"
	XSS              = "xss"
	CommandInjection = "commandInjection"
	PathTraversal    = "pathTraversal"
)

//go:embed data/catalog.json
var builtin []byte

// Suite is a named, ordered list of attack strings.
type Suite struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Payloads []string `json:"payloads"`
}

// Info summarizes a suite without its payloads.
type Info struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Catalog is an immutable set of suites.
type Catalog struct {
	suites []Suite
	index  map[string]int
}

type catalogFile struct {
	Suites []Suite `json:"suites"`
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := jsonutil.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if len(f.Suites) == 0 {
		return nil, fmt.Errorf("%w: no suites", ErrInvalidCatalog)
	}

	c := &Catalog{index: make(map[string]int, len(f.Suites))}
	for _, s := range f.Suites {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: suite without name", ErrInvalidCatalog)
		}
		if _, dup := c.index[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate suite %q", ErrInvalidCatalog, s.Name)
		}
		if len(s.Payloads) == 0 {
			return nil, fmt.Errorf("%w: suite %q is empty", ErrInvalidCatalog, s.Name)
		}
		if s.Label == "" {
			s.Label = s.Name
		}
		c.index[s.Name] = len(c.suites)
		c.suites = append(c.suites, s)
	}
	return c, nil
}

// LoadFile reads a catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("payloads: read %s: %w", path, err)
	}
	return Parse(data)
}

var (
	defaultCatalog *Catalog
	defaultOnce    sync.Once
)

// Default returns the embedded catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(builtin)
		if err != nil {
			panic("payloads: embedded catalog: " + err.Error())
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// ListFor returns a copy of the suite's payloads in catalog order.
func (c *Catalog) ListFor(suite string) ([]string, bool) {
	i, ok := c.index[suite]
	if !ok {
		return nil, false
	}
	return append([]string(nil), c.suites[i].Payloads...), true
}

// Has reports whether suite exists.
func (c *Catalog) Has(suite string) bool {
	_, ok := c.index[suite]
	return ok
}

// Suites lists suites in catalog order.
func (c *Catalog) Suites() []Info {
	out := make([]Info, 0, len(c.suites))
	for _, s := range c.suites {
		out = append(out, Info{Name: s.Name, Label: s.Label, Count: len(s.Payloads)})
	}
	return out
}

// Names lists suite names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.suites))
	for _, s := range c.suites {
		out = append(out, s.Name)
	}
	return out
}

// ListFor looks suite up in the embedded catalog.
func ListFor(suite string) ([]string, bool) {
	return Default().ListFor(suite)
}
