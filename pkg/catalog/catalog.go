// Package catalog persists the names, files and schemas of the user tables of
// a database directory in a YAML document.
package catalog

import (
	"os"
	"pagedb/pkg/dberror"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the catalog document inside a data directory.
const FileName = "catalog.yaml"

// Column is one attribute of a catalogued table.
type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Entry describes one table.
type Entry struct {
	Name    string   `yaml:"name"`
	File    string   `yaml:"file"`
	Columns []Column `yaml:"columns"`
}

// NewEntry describes a table stored in file with schema td.
func NewEntry(name, file string, td *tuple.TupleDescription) Entry {
	cols := make([]Column, td.NumFields())
	for i := range cols {
		fieldName, _ := td.GetFieldName(i)
		fieldType, _ := td.TypeAtIndex(i)
		cols[i] = Column{Name: fieldName, Type: fieldType.String()}
	}
	return Entry{Name: name, File: file, Columns: cols}
}

// TupleDesc rebuilds the schema recorded for the table.
func (e Entry) TupleDesc() (*tuple.TupleDescription, error) {
	fieldTypes := make([]types.Type, len(e.Columns))
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		t, err := types.ParseType(c.Type)
		if err != nil {
			return nil, dberror.SchemaMismatch("table %s column %s: %v", e.Name, c.Name, err)
		}
		fieldTypes[i] = t
		names[i] = c.Name
	}
	return tuple.NewTupleDesc(fieldTypes, names)
}

type document struct {
	Tables []Entry `yaml:"tables"`
}

// Catalog is the in-memory view of a catalog document. Every mutation is
// written back to disk before it returns.
type Catalog struct {
	path    string
	entries map[string]Entry
	mutex   sync.RWMutex
}

// Open loads the catalog of dir, starting empty if the document does not
// exist yet.
func Open(dir string) (*Catalog, error) {
	c := &Catalog{
		path:    filepath.Join(dir, FileName),
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, dberror.IO(errors.Wrapf(err, "read %s", c.path), "catalog.Open")
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, dberror.IO(errors.Wrapf(err, "parse %s", c.path), "catalog.Open")
	}
	for _, e := range doc.Tables {
		c.entries[e.Name] = e
	}
	return c, nil
}

// Put records or replaces the entry for e.Name.
func (c *Catalog) Put(e Entry) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[e.Name] = e
	return c.save()
}

// Remove deletes the entry for name. Removing an unknown name is a no-op.
func (c *Catalog) Remove(name string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.entries[name]; !ok {
		return nil
	}
	delete(c.entries, name)
	return c.save()
}

// Lookup returns the entry for name.
func (c *Catalog) Lookup(name string) (Entry, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, ok := c.entries[name]
	if !ok {
		return Entry{}, dberror.NotFound("table", name)
	}
	return e, nil
}

// Names returns the catalogued table names in sorted order.
func (c *Catalog) Names() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.sortedNames()
}

func (c *Catalog) save() error {
	doc := document{Tables: make([]Entry, 0, len(c.entries))}
	for _, name := range c.sortedNames() {
		doc.Tables = append(doc.Tables, c.entries[name])
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return errors.Wrap(err, "encode catalog")
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return dberror.IO(errors.Wrapf(err, "write %s", tmp), "catalog.save")
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return dberror.IO(errors.Wrapf(err, "replace %s", c.path), "catalog.save")
	}
	return nil
}

func (c *Catalog) sortedNames() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
