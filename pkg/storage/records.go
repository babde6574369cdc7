package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miamirp/cityrecords/pkg/rbac"
	"github.com/miamirp/cityrecords/pkg/records"
)

// citizenIDAttempts bounds regeneration when a random citizen id collides
const citizenIDAttempts = 3

func schemaFor(kind rbac.Kind) (*records.Schema, error) {
	s, ok := records.SchemaFor(kind)
	if !ok {
		return nil, fmt.Errorf("no record schema for kind %q", kind)
	}
	return s, nil
}

func (s *Store) selectFrom(schema *records.Schema) string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(recordColumns(schema), ", "), schema.Table)
}

const newestFirst = " ORDER BY created_at DESC, id DESC"

// Get returns one record by id
func (s *Store) Get(ctx context.Context, kind rbac.Kind, id int64) (rec records.Record, err error) {
	defer s.observe(string(kind), "get", time.Now(), &err)

	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}

	b := &binder{dialect: s.dialect}
	query := s.selectFrom(schema) + " WHERE id = " + b.bind(id)

	rec, err = scanRecord(s.db.QueryRowContext(ctx, query, b.args...), schema)
	if err != nil {
		return nil, wrapErr(ctx, "get "+schema.Table, err)
	}
	return rec, nil
}

// List returns every record of kind, newest first
func (s *Store) List(ctx context.Context, kind rbac.Kind) (recs []records.Record, err error) {
	defer s.observe(string(kind), "list", time.Now(), &err)

	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, schema, s.selectFrom(schema)+newestFirst)
}

// Search returns records where any search column contains query,
// case-insensitively. LIKE wildcards in query match literally.
func (s *Store) Search(ctx context.Context, kind rbac.Kind, query string) (recs []records.Record, err error) {
	defer s.observe(string(kind), "search", time.Now(), &err)

	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}

	b := &binder{dialect: s.dialect}
	where := searchClause(b, schema.SearchColumns(), query)
	return s.query(ctx, schema, s.selectFrom(schema)+" WHERE "+where+newestFirst, b.args...)
}

func searchClause(b *binder, columns []string, query string) string {
	pattern := "%" + escapeLike(query) + "%"
	conds := make([]string, len(columns))
	for i, col := range columns {
		conds[i] = fmt.Sprintf(`LOWER(%s) LIKE LOWER(%s) ESCAPE '\'`, col, b.bind(pattern))
	}
	return "(" + strings.Join(conds, " OR ") + ")"
}

// ListByCitizen returns the records of kind linked to a citizen
func (s *Store) ListByCitizen(ctx context.Context, kind rbac.Kind, citizenID int64) (recs []records.Record, err error) {
	defer s.observe(string(kind), "list_by_citizen", time.Now(), &err)

	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}
	ref, ok := schema.RefField(rbac.KindCitizen)
	if !ok {
		return nil, fmt.Errorf("%s records are not linked to citizens", kind)
	}

	b := &binder{dialect: s.dialect}
	query := s.selectFrom(schema) + " WHERE " + ref.Column + " = " + b.bind(citizenID) + newestFirst
	return s.query(ctx, schema, query, b.args...)
}

// Wanted returns citizens flagged as wanted
func (s *Store) Wanted(ctx context.Context) (recs []records.Record, err error) {
	defer s.observe(string(rbac.KindCitizen), "wanted", time.Now(), &err)

	schema := records.MustSchema(rbac.KindCitizen)
	b := &binder{dialect: s.dialect}
	query := s.selectFrom(schema) + " WHERE is_wanted = " + b.bind(true) + newestFirst
	return s.query(ctx, schema, query, b.args...)
}

func (s *Store) query(ctx context.Context, schema *records.Schema, query string, args ...interface{}) ([]records.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(ctx, "list "+schema.Table, err)
	}
	recs, err := scanRecords(rows, schema)
	if err != nil {
		return nil, wrapErr(ctx, "scan "+schema.Table, err)
	}
	return recs, nil
}

// Create inserts a record stamped with actorID as creator and updater.
// Citizens receive a generated citizenId.
func (s *Store) Create(ctx context.Context, kind rbac.Kind, values records.Values, actorID int64) (rec records.Record, err error) {
	defer s.observe(string(kind), "create", time.Now(), &err)

	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}

	attempts := 1
	if len(schema.Generated) > 0 {
		attempts = citizenIDAttempts
	}

	for i := 0; i < attempts; i++ {
		rec, err = s.insert(ctx, schema, values, actorID)
		if err == nil || !errors.Is(err, ErrConflict) || len(schema.Generated) == 0 {
			return rec, err
		}
	}
	return nil, err
}

func (s *Store) insert(ctx context.Context, schema *records.Schema, values records.Values, actorID int64) (records.Record, error) {
	now := s.timestamp()
	b := &binder{dialect: s.dialect}

	cols := make([]string, 0, len(schema.Fields)+6)
	marks := make([]string, 0, cap(cols))

	for _, f := range schema.Generated {
		id, err := s.newCitizenID()
		if err != nil {
			return nil, err
		}
		cols = append(cols, f.Column)
		marks = append(marks, b.bind(id))
	}
	for _, f := range schema.Fields {
		cols = append(cols, f.Column)
		marks = append(marks, b.bind(values[f.Name]))
	}
	if schema.IssuedAt {
		cols = append(cols, "issued_at")
		marks = append(marks, b.bind(now))
	}
	cols = append(cols, "created_at", "updated_at", "created_by", "updated_by")
	marks = append(marks, b.bind(now), b.bind(now), b.bind(actorID), b.bind(actorID))

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		schema.Table,
		strings.Join(cols, ", "),
		strings.Join(marks, ", "),
		strings.Join(recordColumns(schema), ", "),
	)

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, b.args...), schema)
	if err != nil {
		return nil, wrapErr(ctx, "insert into "+schema.Table, err)
	}
	return rec, nil
}

// Update applies values to an existing record, stamps actorID as updater and
// refreshes updatedAt. A missing record yields ErrNotFound and nothing is
// written.
func (s *Store) Update(ctx context.Context, kind rbac.Kind, id int64, values records.Values, actorID int64) (rec records.Record, err error) {
	defer s.observe(string(kind), "update", time.Now(), &err)

	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}

	b := &binder{dialect: s.dialect}
	sets := make([]string, 0, len(values)+2)
	for _, f := range schema.Fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		sets = append(sets, f.Column+" = "+b.bind(v))
	}
	sets = append(sets,
		"updated_at = "+b.bind(s.timestamp()),
		"updated_by = "+b.bind(actorID),
	)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s RETURNING %s",
		schema.Table,
		strings.Join(sets, ", "),
		b.bind(id),
		strings.Join(recordColumns(schema), ", "),
	)

	rec, err = scanRecord(s.db.QueryRowContext(ctx, query, b.args...), schema)
	if err != nil {
		return nil, wrapErr(ctx, "update "+schema.Table, err)
	}
	return rec, nil
}

// Delete removes a record. It reports false when no row had that id.
func (s *Store) Delete(ctx context.Context, kind rbac.Kind, id int64) (deleted bool, err error) {
	defer s.observe(string(kind), "delete", time.Now(), &err)

	schema, err := schemaFor(kind)
	if err != nil {
		return false, err
	}

	b := &binder{dialect: s.dialect}
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+schema.Table+" WHERE id = "+b.bind(id), b.args...)
	if err != nil {
		return false, wrapErr(ctx, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}
