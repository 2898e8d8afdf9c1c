package client

import (
	"context"
	"regexp"
	"strings"

	"github.com/TFMV/relay/pkg/errors"
	"github.com/TFMV/relay/pkg/expr"
)

// Database is a named database on a client's backend.
type Database struct {
	name   string
	client *Client
}

// Database returns a handle on the named database. An empty name is the
// backend's current database.
func (c *Client) Database(name string) *Database {
	return &Database{name: name, client: c}
}

// Name returns the database name.
func (d *Database) Name() string { return d.name }

// Table returns the named table.
func (d *Database) Table(ctx context.Context, name string) (*expr.Table, error) {
	return d.client.Table(ctx, name, d.name)
}

// Lookup returns the named table, or a NOT_FOUND error when the database
// has no such table.
func (d *Database) Lookup(ctx context.Context, name string) (*expr.Table, error) {
	ok, err := d.Contains(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(errors.ErrTableNotFound, errors.CodeNotFound, "table %q not found", qualify(d.name, name))
	}
	return d.Table(ctx, name)
}

// ListTables lists tables, optionally filtered by a regular expression.
func (d *Database) ListTables(ctx context.Context, like string) ([]string, error) {
	return d.client.ListTables(ctx, like, d.name)
}

// Contains reports whether the database has a table called name.
func (d *Database) Contains(ctx context.Context, name string) (bool, error) {
	return d.client.ExistsTable(ctx, name, d.name)
}

// Namespace returns a view of the tables whose names start with prefix.
func (d *Database) Namespace(prefix string) *Namespace {
	return &Namespace{db: d, prefix: prefix}
}

// Namespace groups tables sharing a name prefix. Names passed to and
// returned from a Namespace omit the prefix.
type Namespace struct {
	db     *Database
	prefix string
}

// Prefix returns the namespace prefix.
func (n *Namespace) Prefix() string { return n.prefix }

// Table returns the table prefix+name.
func (n *Namespace) Table(ctx context.Context, name string) (*expr.Table, error) {
	return n.db.Table(ctx, n.prefix+name)
}

// Lookup returns the table prefix+name, or NOT_FOUND.
func (n *Namespace) Lookup(ctx context.Context, name string) (*expr.Table, error) {
	return n.db.Lookup(ctx, n.prefix+name)
}

// ListTables lists the namespace's tables without their prefix. A non-empty
// like filters the unprefixed names.
func (n *Namespace) ListTables(ctx context.Context, like string) ([]string, error) {
	var re *regexp.Regexp
	if like != "" {
		var err error
		if re, err = regexp.Compile(like); err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidRequest, "invalid table pattern %q", like)
		}
	}

	names, err := n.db.ListTables(ctx, "^"+regexp.QuoteMeta(n.prefix)+".*")
	if err != nil {
		return nil, err
	}

	out := names[:0]
	for _, name := range names {
		short := strings.TrimPrefix(name, n.prefix)
		if re == nil || re.MatchString(short) {
			out = append(out, short)
		}
	}
	return out, nil
}
