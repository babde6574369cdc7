// Package cli provides the cityrecords command-line interface.
//
// # Commands
//
// serve: Run the API and the health/metrics listener
//
//	cityrecords serve --migrate
//
// migrate: Apply pending schema migrations
//
//	cityrecords migrate
//
// user create: Bootstrap an account without going through the API
//
//	cityrecords user create --username admin --role IT --password-stdin
//
// user list: Print every account
//
//	cityrecords user list --format json
//
// policy: Print the access matrix the server enforces
//
//	cityrecords policy
//
// # Configuration
//
// Every command reads the same configuration as the server: a YAML file
// named by --config or CITYRECORDS_CONFIG_FILE, overlaid by CITYRECORDS_*
// environment variables.
//
//	export CITYRECORDS_DATABASE_URL="postgres://app@db/cityrecords?sslmode=disable"
//	export CITYRECORDS_SESSION_BACKEND=redis
package cli
