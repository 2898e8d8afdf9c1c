// Package flightsql is a backend that forwards statements to a remote
// Arrow Flight SQL server.
package flightsql

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/flight/flightsql"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/TFMV/relay/pkg/compiler"
	"github.com/TFMV/relay/pkg/cursor"
	"github.com/TFMV/relay/pkg/errors"
	"github.com/TFMV/relay/pkg/result"
)

// Name is the backend name.
const Name = "flightsql"

// Driver talks to a Flight SQL server.
type Driver struct {
	client  *flightsql.Client
	dialect compiler.Dialect
	alloc   memory.Allocator
	logger  zerolog.Logger
}

// Option configures a Driver.
type Option func(*options)

type options struct {
	dialect  compiler.Dialect
	alloc    memory.Allocator
	token    string
	jwt      *JWTConfig
	dialOpts []grpc.DialOption
}

// WithDialect sets the SQL dialect the server speaks. The default is ANSI.
func WithDialect(d compiler.Dialect) Option {
	return func(o *options) { o.dialect = d }
}

// WithAllocator sets the allocator used to read server responses.
func WithAllocator(alloc memory.Allocator) Option {
	return func(o *options) { o.alloc = alloc }
}

// WithToken sends token as a bearer authorization header on every call.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithJWT signs an HS256 token from cfg and sends it as the bearer token.
// It takes precedence over WithToken.
func WithJWT(cfg JWTConfig) Option {
	return func(o *options) { o.jwt = &cfg }
}

// WithDialOptions replaces the default insecure transport credentials.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.dialOpts = opts }
}

// Open creates a client for the server at address. The connection is
// established lazily on the first statement.
func Open(address string, logger zerolog.Logger, opts ...Option) (*Driver, error) {
	o := options{
		dialect:  compiler.ANSI{},
		alloc:    memory.DefaultAllocator,
		dialOpts: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger = logger.With().Str("component", "flightsql").Str("address", address).Logger()

	calls := callLogger{logger: logger}
	unary := []grpc.UnaryClientInterceptor{calls.unary()}
	stream := []grpc.StreamClientInterceptor{calls.stream()}
	var auth *bearer
	switch {
	case o.jwt != nil:
		auth = &bearer{token: newJWTSource(*o.jwt).Token}
	case o.token != "":
		b := staticToken(o.token)
		auth = &b
	}
	if auth != nil {
		unary = append(unary, auth.unary())
		stream = append(stream, auth.stream())
	}
	dialOpts := append(append([]grpc.DialOption(nil), o.dialOpts...),
		grpc.WithChainUnaryInterceptor(unary...),
		grpc.WithChainStreamInterceptor(stream...))

	client, err := flightsql.NewClient(address, nil, nil, dialOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConnectionFailed, "failed to create Flight SQL client for %s", address)
	}
	client.Alloc = o.alloc

	logger.Info().Str("dialect", o.dialect.Name()).Msg("Created Flight SQL client")

	return &Driver{client: client, dialect: o.dialect, alloc: o.alloc, logger: logger}, nil
}

func (d *Driver) Name() string              { return Name }
func (d *Driver) Dialect() compiler.Dialect { return d.dialect }

// Connection implements client.Driver.
func (d *Driver) Connection() cursor.Connection {
	return &connection{driver: d}
}

// TypeOf implements client.Driver. Flight SQL results always carry Arrow
// types, so no name is ever mapped.
func (d *Driver) TypeOf(name string) (arrow.DataType, error) {
	return nil, errors.Newf(errors.CodeUnsupportedType, "flight sql columns carry arrow types; cannot map %q", name)
}

// ListTablesQuery uses the server's information schema.
func (d *Driver) ListTablesQuery(database string) string {
	q := "SELECT table_name FROM information_schema.tables"
	if database != "" {
		lit, _ := compiler.FormatLiteral(database)
		q += " WHERE table_catalog = " + lit
	}
	return q
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	d.logger.Debug().Msg("Closing Flight SQL client")
	return d.client.Close()
}

type connection struct {
	driver *Driver
}

// Execute plans stmt on the server. Rows are streamed on FetchAll.
func (c *connection) Execute(ctx context.Context, stmt string) (cursor.Cursor, error) {
	info, err := c.driver.client.Execute(ctx, stmt)
	if err != nil {
		return nil, err
	}

	cur := &flightCursor{driver: c.driver, info: info}
	if len(info.Schema) > 0 {
		if cur.schema, err = flight.DeserializeSchema(info.Schema, c.driver.alloc); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to decode result schema")
		}
	}
	return cur, nil
}

type flightCursor struct {
	driver *Driver
	info   *flight.FlightInfo
	schema *arrow.Schema
}

// Columns describes the result schema. When the server sent no schema with
// the flight info it is known only after FetchAll.
func (f *flightCursor) Columns() []cursor.ColumnInfo {
	if f.schema == nil {
		return nil
	}
	cols := make([]cursor.ColumnInfo, f.schema.NumFields())
	for i, field := range f.schema.Fields() {
		cols[i] = cursor.ColumnInfo{
			Name:         field.Name,
			DatabaseType: field.Type.String(),
			Nullable:     field.Nullable,
			Type:         field.Type,
		}
	}
	return cols
}

// FetchAll reads every endpoint in order.
func (f *flightCursor) FetchAll(ctx context.Context) ([][]any, error) {
	var rows [][]any
	for _, ep := range f.info.Endpoint {
		got, err := f.readEndpoint(ctx, ep)
		if err != nil {
			return nil, err
		}
		rows = append(rows, got...)
	}

	f.driver.logger.Trace().
		Int("endpoints", len(f.info.Endpoint)).
		Int("rows", len(rows)).
		Msg("Fetched rows")
	return rows, nil
}

func (f *flightCursor) readEndpoint(ctx context.Context, ep *flight.FlightEndpoint) ([][]any, error) {
	reader, err := f.driver.client.DoGet(ctx, ep.GetTicket())
	if err != nil {
		return nil, err
	}
	defer reader.Release()

	if f.schema == nil {
		f.schema = reader.Schema()
	}

	var rows [][]any
	for reader.Next() {
		rows = append(rows, recordRows(reader.Record())...)
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Release is a no-op; readers are released as they are drained.
func (f *flightCursor) Release() error {
	return nil
}

// recordRows converts a record batch to row tuples.
func recordRows(rec arrow.Record) [][]any {
	n := int(rec.NumRows())
	rows := make([][]any, n)
	for i := 0; i < n; i++ {
		row := make([]any, rec.NumCols())
		for j, col := range rec.Columns() {
			row[j] = result.ValueAt(col, i)
		}
		rows[i] = row
	}
	return rows
}
