package factory

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/cortexfed/cortex/internal/errs"
)

func TestOpenRAM(t *testing.T) {
	c, err := Open("ram://", Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Fini()
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cortex.db")
	c, err := Open("sqlite:///"+path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Fini()
}

func TestOpenUnknownScheme(t *testing.T) {
	_, err := Open("ftp://example.com", Options{})
	if err == nil {
		t.Fatal("expected error for unknown scheme")
	}
	var nss *errs.NoSuchScheme
	if !errors.As(err, &nss) {
		t.Fatalf("got %T, want *errs.NoSuchScheme", err)
	}
	if nss.Scheme != "ftp" {
		t.Fatalf("scheme = %q", nss.Scheme)
	}
}
