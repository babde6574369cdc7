// Package records describes the regulated record kinds: their tables,
// writable fields, search columns and payload validation.
//
// Payloads are decoded as JSON objects and checked against a Schema:
//
//	values, err := records.MustSchema(rbac.KindVehicle).Validate(body, records.ModeCreate)
//
// Numeric strings are accepted for integer fields and the strings "true" and
// "false" for booleans. Keys the schema does not list are ignored, which keeps
// clients from writing ids, stamps or generated identifiers.
package records
