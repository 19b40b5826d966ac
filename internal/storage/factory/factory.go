// Package factory opens a cortex backend from a URL, dispatching on
// scheme (spec.md §4.2's openurl behavior). Grounded on the teacher's
// internal/storage/factory registry-of-constructors shape, generalized
// from a single "backend name" parameter to full URL parsing.
package factory

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cortexfed/cortex/internal/cortex"
	"github.com/cortexfed/cortex/internal/cortex/memory"
	"github.com/cortexfed/cortex/internal/cortex/postgres"
	"github.com/cortexfed/cortex/internal/cortex/sqlite"
	"github.com/cortexfed/cortex/internal/cortex/telepath"
	"github.com/cortexfed/cortex/internal/errs"
)

// Options configures how a URL is opened. Every scheme ignores the
// options it has no use for.
type Options struct {
	Table string // reserved for backends that multiplex more than one row table per connection
	Async bool   // accepted but not read by any scheme constructor
}

// schemeFactory constructs a cortex.Cortex from a parsed URL.
type schemeFactory func(u *url.URL, opts Options) (cortex.Cortex, error)

var registry = map[string]schemeFactory{
	"ram":      openRAM,
	"sqlite":   openSQLite,
	"postgres": openPostgres,
	"tcp":      openTCP,
}

// Open dispatches rawurl's scheme to the matching backend constructor
// (spec.md §4.2's openurl / openlink registry pattern). An unknown
// scheme is a NoSuchScheme error, not a panic.
func Open(rawurl string, opts Options) (cortex.Cortex, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, &errs.InvalidParam{Name: "url", Msg: err.Error()}
	}

	factory, ok := registry[u.Scheme]
	if !ok {
		return nil, &errs.NoSuchScheme{Scheme: u.Scheme}
	}
	return factory(u, opts)
}

func openRAM(u *url.URL, opts Options) (cortex.Cortex, error) {
	return memory.New(), nil
}

func openSQLite(u *url.URL, opts Options) (cortex.Cortex, error) {
	// The path is whatever follows "sqlite:///", so one leading slash is
	// dropped below:
	// sqlite:///rel/path.db -> u.Path == "/rel/path.db" -> "rel/path.db"
	// sqlite:////abs/path.db -> u.Path == "//abs/path.db" -> "/abs/path.db"
	// sqlite://relative/path.db -> u.Host == "relative", u.Path == "/path.db" -> "relative/path.db"
	path := u.Path
	if u.Host != "" {
		path = u.Host + path
	}
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil, &errs.InvalidParam{Name: "url", Msg: "sqlite:// URL has no path"}
	}
	return sqlite.Open(path)
}

func openPostgres(u *url.URL, opts Options) (cortex.Cortex, error) {
	return postgres.Open(u.String())
}

func openTCP(u *url.URL, opts Options) (cortex.Cortex, error) {
	if u.Host == "" {
		return nil, &errs.InvalidParam{Name: "url", Msg: "tcp:// URL has no host:port"}
	}
	return telepath.Dial(u.Host)
}
