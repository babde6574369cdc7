package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/miamirp/cityrecords/pkg/records"
)

// nullTime scans TIMESTAMP columns from either driver. SQLite hands back
// text when the declared column type is not visible, as with RETURNING.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (t *nullTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("cannot scan %T into timestamp", src)
}

func (t *nullTime) parse(s string) error {
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}

// recordColumns is the SELECT list of a record kind. The scan order in
// scanRecord matches it.
func recordColumns(s *records.Schema) []string {
	cols := []string{"id"}
	for _, f := range s.Columns() {
		cols = append(cols, f.Column)
	}
	if s.IssuedAt {
		cols = append(cols, "issued_at")
	}
	return append(cols, "created_at", "updated_at", "created_by", "updated_by")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner, s *records.Schema) (records.Record, error) {
	fields := s.Columns()

	var id, createdBy, updatedBy int64
	var issuedAt, createdAt, updatedAt nullTime

	dest := make([]interface{}, 0, len(fields)+6)
	dest = append(dest, &id)

	values := make([]interface{}, len(fields))
	for i, f := range fields {
		switch f.Type {
		case records.TypeInt:
			values[i] = &sql.NullInt64{}
		case records.TypeBool:
			values[i] = &sql.NullBool{}
		default:
			values[i] = &sql.NullString{}
		}
		dest = append(dest, values[i])
	}
	if s.IssuedAt {
		dest = append(dest, &issuedAt)
	}
	dest = append(dest, &createdAt, &updatedAt, &createdBy, &updatedBy)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rec := records.Record{
		"id":        id,
		"createdAt": createdAt.Time,
		"updatedAt": updatedAt.Time,
		"createdBy": createdBy,
		"updatedBy": updatedBy,
	}
	if s.IssuedAt {
		rec["issuedAt"] = issuedAt.Time
	}

	for i, f := range fields {
		switch v := values[i].(type) {
		case *sql.NullInt64:
			rec[f.Name] = nullable(v.Valid, v.Int64)
		case *sql.NullBool:
			rec[f.Name] = nullable(v.Valid, v.Bool)
		case *sql.NullString:
			rec[f.Name] = nullable(v.Valid, v.String)
		}
	}
	return rec, nil
}

func nullable[T any](valid bool, v T) interface{} {
	if !valid {
		return nil
	}
	return v
}

func scanRecords(rows *sql.Rows, s *records.Schema) ([]records.Record, error) {
	defer rows.Close()

	out := make([]records.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows, s)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
