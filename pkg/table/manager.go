package table

import (
	"fmt"
	"os"
	"pagedb/pkg/catalog"
	"pagedb/pkg/dberror"
	"pagedb/pkg/logging"
	"pagedb/pkg/memory"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage/heap"
	"pagedb/pkg/tuple"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

const (
	tableExt = ".tbl"
	tempDir  = "tmp"
)

// Manager owns the tables of one data directory. Named tables are recorded in
// the catalog and reopened on demand; temporary tables live under tmp/ and are
// never catalogued.
type Manager struct {
	dir         string
	store       *memory.PageStore
	catalog     *catalog.Catalog
	nameToTable map[string]*Table
	tempSeq     int
	mutex       sync.Mutex
}

// NewManager opens the data directory dir, creating it if needed, and loads
// its catalog. Leftover temporary files of an earlier process are removed.
func NewManager(dir string, store *memory.PageStore) (*Manager, error) {
	if err := os.MkdirAll(filepath.Join(dir, tempDir), 0o750); err != nil {
		return nil, dberror.IO(errors.Wrapf(err, "create data directory %s", dir), "NewManager")
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, tempDir, "*"+tableExt))
	for _, f := range leftovers {
		_ = os.Remove(f)
	}

	cat, err := catalog.Open(dir)
	if err != nil {
		return nil, err
	}

	return &Manager{
		dir:         dir,
		store:       store,
		catalog:     cat,
		nameToTable: make(map[string]*Table),
	}, nil
}

// Dir returns the data directory.
func (m *Manager) Dir() string { return m.dir }

// Store returns the buffer pool the tables are read through.
func (m *Manager) Store() *memory.PageStore { return m.store }

// Create creates an empty named table, replacing any table of the same name.
func (m *Manager) Create(name string, td *tuple.TupleDescription) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("table name cannot be empty")
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.dropLocked(name); err != nil {
		return nil, err
	}

	fileName := name + tableExt
	t, err := m.openFile(name, primitives.Filepath(filepath.Join(m.dir, fileName)), td, true)
	if err != nil {
		return nil, err
	}
	if err := m.catalog.Put(catalog.NewEntry(name, fileName, td)); err != nil {
		_ = t.file.Close()
		return nil, err
	}

	m.nameToTable[name] = t
	logging.WithTable(name).Debug("table created", "schema", td.String())
	return t, nil
}

// CreateTemp creates an uncatalogued scratch table. Temporary tables are
// removed with Drop, or by Close.
func (m *Manager) CreateTemp(prefix string, td *tuple.TupleDescription) (*Table, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.tempSeq++
	name := fmt.Sprintf("%s.tmp%d", prefix, m.tempSeq)
	path := primitives.Filepath(filepath.Join(m.dir, tempDir, name+tableExt))

	t, err := m.openFile(name, path, td, true)
	if err != nil {
		return nil, err
	}
	t.temp = true
	m.nameToTable[name] = t
	return t, nil
}

// Get returns the named table, opening it from the catalog if necessary.
func (m *Manager) Get(name string) (*Table, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if t, ok := m.nameToTable[name]; ok {
		return t, nil
	}

	e, err := m.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	td, err := e.TupleDesc()
	if err != nil {
		return nil, err
	}

	t, err := m.openFile(name, primitives.Filepath(filepath.Join(m.dir, e.File)), td, false)
	if err != nil {
		return nil, err
	}
	m.nameToTable[name] = t
	return t, nil
}

// Names returns the catalogued table names in sorted order.
func (m *Manager) Names() []string {
	return m.catalog.Names()
}

// Open lists the tables currently open, temporary tables included.
func (m *Manager) Open() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	names := make([]string, 0, len(m.nameToTable))
	for name := range m.nameToTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Drop deletes the table and its file.
func (m *Manager) Drop(t *Table) error {
	if t == nil {
		return nil
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.dropLocked(t.name)
}

func (m *Manager) dropLocked(name string) error {
	t, open := m.nameToTable[name]
	if !open {
		e, err := m.catalog.Lookup(name)
		if err != nil {
			return nil
		}
		if err := primitives.Filepath(filepath.Join(m.dir, e.File)).Remove(); err != nil {
			return dberror.IO(err, "Drop")
		}
		return m.catalog.Remove(name)
	}

	if err := m.store.Discard(t.file); err != nil {
		return err
	}
	path := t.file.FilePath()
	if err := t.file.Close(); err != nil {
		return dberror.IO(err, "Drop")
	}
	if err := path.Remove(); err != nil {
		return dberror.IO(err, "Drop")
	}

	delete(m.nameToTable, name)
	if !t.temp {
		return m.catalog.Remove(name)
	}
	return nil
}

// Close flushes every open table, drops the temporary ones and closes the
// files. The buffer pool is left open.
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for name, t := range m.nameToTable {
		if t.temp {
			keep(m.dropLocked(name))
			continue
		}
		keep(m.store.Flush(t.file))
		keep(m.store.Discard(t.file))
		keep(t.file.Close())
		delete(m.nameToTable, name)
	}
	return firstErr
}

func (m *Manager) openFile(name string, path primitives.Filepath, td *tuple.TupleDescription, fresh bool) (*Table, error) {
	if fresh {
		if err := path.Remove(); err != nil {
			return nil, dberror.IO(err, "openFile")
		}
	} else if !path.Exists() {
		return nil, dberror.NotFound("table file", path.String())
	}

	hf, err := heap.NewHeapFile(path, td)
	if err != nil {
		if errors.Is(err, heap.ErrSchemaMismatch) {
			return nil, dberror.SchemaMismatch("table %s: %v", name, err)
		}
		return nil, dberror.IO(err, "openFile")
	}
	t := New(name, hf, m.store)
	t.manager = m
	return t, nil
}
