// Package ldmatrix builds and serves the sparse, banded LD correlation matrix
// over matched variants. The matrix lives on disk in a sqlite file with one
// row per column, and is appended to one chromosome at a time.
package ldmatrix

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"
)

// FormatVersion is written into every store and checked on Open.
const FormatVersion = 1

// ErrFormat is returned by Open for a file that is not a store of this
// FormatVersion.
var ErrFormat = errors.New("ldmatrix: unsupported store format")

const schema = `
CREATE TABLE meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE ld_column (
	col INTEGER PRIMARY KEY,
	nnz INTEGER NOT NULL,
	rows BLOB NOT NULL,
	vals BLOB NOT NULL
);
`

// Column is one sparse column: row indices in increasing order and their
// correlations.
type Column struct {
	Rows   []int
	Values []float64
}

// SFBM is a sparse symmetric matrix stored column by column on disk. Columns
// are read through a bounded in-memory cache. Safe for concurrent readers.
type SFBM struct {
	path     string
	db       *sqlx.DB
	readOnly bool
	ncol     int

	mu        sync.Mutex
	cache     map[int]Column
	cacheSize int
}

// DefaultCacheColumns bounds how many columns a store keeps in memory.
var DefaultCacheColumns = 1 << 16

// Create makes a new, empty store at path. An existing file is replaced.
func Create(path string) (*SFBM, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, pfx.Err(err)
	}

	db, err := sqlx.Connect(driverName, path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}
	if _, err := db.Exec("INSERT INTO meta (key, value) VALUES ('format_version', ?)", strconv.Itoa(FormatVersion)); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	return &SFBM{
		path:      path,
		db:        db,
		cache:     make(map[int]Column),
		cacheSize: DefaultCacheColumns,
	}, nil
}

// Open opens an existing store read-only.
func Open(path string) (*SFBM, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, pfx.Err(err)
	}

	db, err := sqlx.Connect(driverName, "file:"+path+"?mode=ro")
	if err != nil {
		return nil, pfx.Err(err)
	}

	var version string
	if err := db.Get(&version, "SELECT value FROM meta WHERE key = 'format_version'"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %v: %w", path, err, ErrFormat)
	}
	if version != strconv.Itoa(FormatVersion) {
		db.Close()
		return nil, fmt.Errorf("%s has format version %s, expected %d: %w", path, version, FormatVersion, ErrFormat)
	}

	var ncol int
	if err := db.Get(&ncol, "SELECT COUNT(*) FROM ld_column"); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	return &SFBM{
		path:      path,
		db:        db,
		readOnly:  true,
		ncol:      ncol,
		cache:     make(map[int]Column),
		cacheSize: DefaultCacheColumns,
	}, nil
}

func (s *SFBM) Path() string { return s.path }

// SetCacheSize bounds the number of cached columns. Estimators that sweep the
// whole matrix repeatedly should set it to NCols.
func (s *SFBM) SetCacheSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheSize = n
}

func (s *SFBM) NCols() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ncol
}

// AddColumns appends block after the columns already stored. Row indices in
// block are local to it and are shifted by the current column count, so
// consecutive blocks form a block-diagonal matrix.
func (s *SFBM) AddColumns(block []Column) error {
	if s.readOnly {
		return fmt.Errorf("%s is open read-only", s.path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Beginx()
	if err != nil {
		return pfx.Err(err)
	}

	offset := s.ncol
	for j, c := range block {
		if len(c.Rows) != len(c.Values) {
			tx.Rollback()
			return fmt.Errorf("block column %d has %d rows but %d values", j, len(c.Rows), len(c.Values))
		}

		rows, vals := encode(c, offset)
		if _, err := tx.Exec("INSERT INTO ld_column (col, nnz, rows, vals) VALUES (?, ?, ?, ?)", offset+j, len(c.Rows), rows, vals); err != nil {
			tx.Rollback()
			return pfx.Err(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return pfx.Err(err)
	}
	s.ncol += len(block)

	return nil
}

// Column returns column j with global row indices. The returned slices are
// shared and must not be modified.
func (s *SFBM) Column(j int) (Column, error) {
	s.mu.Lock()
	if c, ok := s.cache[j]; ok {
		s.mu.Unlock()
		return c, nil
	}
	ncol := s.ncol
	s.mu.Unlock()

	if j < 0 || j >= ncol {
		return Column{}, fmt.Errorf("column %d out of range (%d columns)", j, ncol)
	}

	var rec struct {
		NNZ  int    `db:"nnz"`
		Rows []byte `db:"rows"`
		Vals []byte `db:"vals"`
	}
	if err := s.db.Get(&rec, "SELECT nnz, rows, vals FROM ld_column WHERE col = ?", j); err != nil {
		return Column{}, pfx.Err(err)
	}

	c, err := decode(rec.NNZ, rec.Rows, rec.Vals)
	if err != nil {
		return Column{}, fmt.Errorf("%s column %d: %w", s.path, j, err)
	}

	s.mu.Lock()
	if len(s.cache) >= s.cacheSize {
		// Evict an arbitrary entry
		for k := range s.cache {
			delete(s.cache, k)
			break
		}
	}
	s.cache[j] = c
	s.mu.Unlock()

	return c, nil
}

// Close releases the database handle. The file stays on disk.
func (s *SFBM) Close() error {
	return s.db.Close()
}

// Remove closes the store and deletes its file.
func (s *SFBM) Remove() error {
	s.db.Close()
	return pfx.Err(os.Remove(s.path))
}

func encode(c Column, offset int) (rows, vals []byte) {
	rows = make([]byte, 4*len(c.Rows))
	vals = make([]byte, 8*len(c.Values))
	for k, r := range c.Rows {
		binary.LittleEndian.PutUint32(rows[4*k:], uint32(r+offset))
		binary.LittleEndian.PutUint64(vals[8*k:], math.Float64bits(c.Values[k]))
	}

	return rows, vals
}

func decode(nnz int, rows, vals []byte) (Column, error) {
	if len(rows) != 4*nnz || len(vals) != 8*nnz {
		return Column{}, fmt.Errorf("corrupt column: %d entries in %d+%d bytes: %w", nnz, len(rows), len(vals), ErrFormat)
	}

	c := Column{Rows: make([]int, nnz), Values: make([]float64, nnz)}
	for k := 0; k < nnz; k++ {
		c.Rows[k] = int(binary.LittleEndian.Uint32(rows[4*k:]))
		c.Values[k] = math.Float64frombits(binary.LittleEndian.Uint64(vals[8*k:]))
	}

	return c, nil
}
