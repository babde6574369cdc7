package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/miamirp/cityrecords/pkg/records"
)

// Store implements RecordStore and UserStore over database/sql
type Store struct {
	db           *sql.DB
	dialect      Dialect
	recorder     Recorder
	now          func() time.Time
	newCitizenID records.CitizenIDGenerator
}

// Option configures a Store
type Option func(*Store)

// WithRecorder reports every store call to r
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithCitizenIDGenerator overrides citizen identifier generation
func WithCitizenIDGenerator(gen records.CitizenIDGenerator) Option {
	return func(s *Store) {
		s.newCitizenID = gen
	}
}

// New wraps an open database handle
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:           db,
		dialect:      dialect,
		now:          time.Now,
		newCitizenID: records.NewCitizenID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the configured database, sizes the pool and pings it
func Open(ctx context.Context, config Config, opts ...Option) (*Store, error) {
	dialect, err := DialectFor(config.Driver)
	if err != nil {
		return nil, err
	}

	url := config.URL
	if dialect == SQLite {
		url = sqliteDSN(url)
	}

	db, err := sql.Open(dialect.Name(), url)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect.Name(), err)
	}

	if dialect == SQLite {
		// One writer at a time; also keeps in-memory databases on a single connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(config.MaxConns)
		db.SetMaxIdleConns(config.MinConns)
	}
	db.SetConnMaxLifetime(config.MaxLifetime)
	db.SetConnMaxIdleTime(config.MaxIdleTime)

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect.Name(), err)
	}

	return New(db, dialect, opts...), nil
}

// sqliteDSN turns on foreign key enforcement for every pooled connection
// unless the DSN already sets it.
func sqliteDSN(url string) string {
	if strings.Contains(url, "_foreign_keys=") || strings.Contains(url, "_fk=") {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "_foreign_keys=on"
}

// DB exposes the underlying handle for health checks and pool metrics
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect in use
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// observe reports a finished call to the recorder. Use with defer:
//
//	defer s.observe("Vehicle", "get", time.Now(), &err)
func (s *Store) observe(kind, op string, start time.Time, errp *error) {
	if s.recorder == nil {
		return
	}
	var err error
	if errp != nil {
		err = *errp
	}
	s.recorder.RecordStoreOperation(kind, op, time.Since(start), err)
}
