package storage

import (
	"context"
	"fmt"
	"strings"
)

// Migration represents a versioned schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

const stampColumns = `
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	created_by BIGINT NOT NULL REFERENCES users(id),
	updated_by BIGINT NOT NULL REFERENCES users(id)`

// Migrations returns every schema migration in order. {{ID}} is replaced by
// the dialect's primary key column.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id {{ID}},
					username TEXT NOT NULL UNIQUE,
					password_hash TEXT NOT NULL,
					role TEXT NOT NULL,
					department TEXT,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL,
					created_by BIGINT REFERENCES users(id)
				);
			`,
		},
		{
			Version:     2,
			Description: "Create citizens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS citizens (
					id {{ID}},
					citizen_id TEXT NOT NULL UNIQUE,
					first_name TEXT NOT NULL,
					last_name TEXT NOT NULL,
					date_of_birth TEXT NOT NULL,
					phone TEXT,
					email TEXT,
					address TEXT,
					photo_url TEXT,
					is_wanted BOOLEAN NOT NULL DEFAULT FALSE,
					wanted_reason TEXT,
					is_amber BOOLEAN NOT NULL DEFAULT FALSE,
					is_deceased BOOLEAN NOT NULL DEFAULT FALSE,
					immigration_status TEXT,
					tax_fraud_flag BOOLEAN NOT NULL DEFAULT FALSE,` + stampColumns + `
				);

				CREATE INDEX IF NOT EXISTS idx_citizens_is_wanted ON citizens(is_wanted);
			`,
		},
		{
			Version:     3,
			Description: "Create vehicles and driver_licenses tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS vehicles (
					id {{ID}},
					license_plate TEXT NOT NULL UNIQUE,
					make TEXT NOT NULL,
					model TEXT NOT NULL,
					year BIGINT NOT NULL,
					color TEXT NOT NULL,
					type TEXT NOT NULL,
					modifications TEXT,
					vin TEXT UNIQUE,
					owner_id BIGINT NOT NULL REFERENCES citizens(id),
					is_registered BOOLEAN NOT NULL DEFAULT TRUE,
					registration_expires TEXT,
					is_stolen BOOLEAN NOT NULL DEFAULT FALSE,` + stampColumns + `
				);

				CREATE INDEX IF NOT EXISTS idx_vehicles_owner_id ON vehicles(owner_id);

				CREATE TABLE IF NOT EXISTS driver_licenses (
					id {{ID}},
					license_number TEXT NOT NULL UNIQUE,
					citizen_id BIGINT NOT NULL REFERENCES citizens(id),
					is_valid BOOLEAN NOT NULL DEFAULT TRUE,
					expires_at TEXT,
					restrictions TEXT,` + stampColumns + `
				);

				CREATE INDEX IF NOT EXISTS idx_driver_licenses_citizen_id ON driver_licenses(citizen_id);
			`,
		},
		{
			Version:     4,
			Description: "Create businesses, properties and permits tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS businesses (
					id {{ID}},
					business_name TEXT NOT NULL,
					business_license TEXT NOT NULL UNIQUE,
					owner_id BIGINT NOT NULL REFERENCES citizens(id),
					type TEXT NOT NULL,
					address TEXT NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,` + stampColumns + `
				);

				CREATE INDEX IF NOT EXISTS idx_businesses_owner_id ON businesses(owner_id);

				CREATE TABLE IF NOT EXISTS properties (
					id {{ID}},
					address TEXT NOT NULL,
					owner_id BIGINT NOT NULL REFERENCES citizens(id),
					type TEXT NOT NULL,
					is_owned BOOLEAN NOT NULL DEFAULT TRUE,
					market_value BIGINT,` + stampColumns + `
				);

				CREATE INDEX IF NOT EXISTS idx_properties_owner_id ON properties(owner_id);

				CREATE TABLE IF NOT EXISTS permits (
					id {{ID}},
					permit_number TEXT NOT NULL UNIQUE,
					permit_type TEXT NOT NULL,
					citizen_id BIGINT NOT NULL REFERENCES citizens(id),
					is_valid BOOLEAN NOT NULL DEFAULT TRUE,
					expires_at TEXT,
					issued_at TIMESTAMP NOT NULL,` + stampColumns + `
				);

				CREATE INDEX IF NOT EXISTS idx_permits_citizen_id ON permits(citizen_id);
			`,
		},
		{
			Version:     5,
			Description: "Create criminal_records table",
			SQL: `
				CREATE TABLE IF NOT EXISTS criminal_records (
					id {{ID}},
					citizen_id BIGINT NOT NULL REFERENCES citizens(id),
					crime_type TEXT NOT NULL,
					description TEXT,
					date_of_crime TEXT NOT NULL,
					status TEXT NOT NULL,
					fine BIGINT,
					is_paid BOOLEAN NOT NULL DEFAULT FALSE,
					jail_time TEXT,
					court_date TEXT,` + stampColumns + `
				);

				CREATE INDEX IF NOT EXISTS idx_criminal_records_citizen_id ON criminal_records(citizen_id);
			`,
		},
	}
}

// MigrationResult reports what Migrate applied
type MigrationResult struct {
	Applied []Migration
	Current int
}

// Migrate executes all pending migrations, each in its own transaction
func (s *Store) Migrate(ctx context.Context) (*MigrationResult, error) {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	result := &MigrationResult{}
	for v := range applied {
		if v > result.Current {
			result.Current = v
		}
	}

	for _, migration := range Migrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return result, fmt.Errorf("failed to start transaction: %w", err)
		}

		ddl := strings.ReplaceAll(migration.SQL, "{{ID}}", s.dialect.IDColumn())
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			tx.Rollback()
			return result, fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		b := &binder{dialect: s.dialect}
		insert := fmt.Sprintf("INSERT INTO schema_migrations (version, description, applied_at) VALUES (%s, %s, %s)",
			b.bind(migration.Version), b.bind(migration.Description), b.bind(s.timestamp()))
		if _, err := tx.ExecContext(ctx, insert, b.args...); err != nil {
			tx.Rollback()
			return result, fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return result, fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		result.Applied = append(result.Applied, migration)
		result.Current = migration.Version
	}

	return result, nil
}

func (s *Store) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
