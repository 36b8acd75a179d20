package ldmatrix

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ld.sqlite")

	s, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}

	first := []Column{
		{Rows: []int{0, 1}, Values: []float64{1, 0.5}},
		{Rows: []int{0, 1}, Values: []float64{0.5, 1}},
	}
	second := []Column{
		{Rows: []int{0}, Values: []float64{1}},
	}
	if err := s.AddColumns(first); err != nil {
		t.Fatal(err)
	}
	if err := s.AddColumns(second); err != nil {
		t.Fatal(err)
	}
	if s.NCols() != 3 {
		t.Errorf("NCols: got %d, want 3", s.NCols())
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.NCols() != 3 {
		t.Fatalf("NCols after reopening: got %d, want 3", r.NCols())
	}

	c, err := r.Column(2)
	if err != nil {
		t.Fatal(err)
	}
	if want := (Column{Rows: []int{2}, Values: []float64{1}}); !reflect.DeepEqual(c, want) {
		t.Errorf("column 2: got %+v, want %+v (block rows must be offset)", c, want)
	}

	c, err = r.Column(1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c, first[1]) {
		t.Errorf("column 1: got %+v, want %+v", c, first[1])
	}

	if _, err := r.Column(3); err == nil {
		t.Error("expected an error for an out of range column")
	}
	if err := r.AddColumns(second); err == nil {
		t.Error("expected an error writing to a read-only store")
	}
}

func TestOpenRejectsOtherVersions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ld.sqlite")

	s, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	db, err := sqlx.Connect(driverName, path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("UPDATE meta SET value = '999' WHERE key = 'format_version'"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := Open(path); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
}

func TestOpenRejectsForeignFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-ld.sqlite")
	if err := os.WriteFile(path, []byte("chr\tpos\n1\t100\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ld.sqlite")

	s, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("store still exists: %v", err)
	}
}
