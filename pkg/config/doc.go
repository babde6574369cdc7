// Package config loads and validates service configuration.
//
// # Sources
//
// Values are layered: built-in defaults, then the YAML file named by
// CITYRECORDS_CONFIG_FILE, then CITYRECORDS_* environment variables.
//
//	server:
//	  port: "8080"
//	  health_port: "9090"
//	  request_timeout: 15s
//	database:
//	  driver: postgres
//	  url: postgres://cityrecords@localhost/cityrecords?sslmode=disable
//	session:
//	  backend: redis
//	  redis_url: redis://localhost:6379/0
//	  ttl: 12h
//	auth:
//	  registration: approval   # approval, open, disabled
//	observability:
//	  log_level: info
//
// # Environment Variables
//
//	CITYRECORDS_PORT="8080"
//	CITYRECORDS_HEALTH_PORT="9090"
//	CITYRECORDS_REQUEST_TIMEOUT="15s"
//	CITYRECORDS_CORS_ORIGINS="http://localhost:3000,https://mdt.example"
//	CITYRECORDS_DB_DRIVER="sqlite3"
//	CITYRECORDS_DATABASE_URL="file:cityrecords.db?_foreign_keys=on"
//	CITYRECORDS_REDIS_URL="redis://localhost:6379/0"  # selects the redis session backend
//	CITYRECORDS_SESSION_TTL="12h"
//	CITYRECORDS_REGISTRATION="approval"
//	CITYRECORDS_BCRYPT_COST="12"
//	CITYRECORDS_LOG_LEVEL="debug"
//	CITYRECORDS_OTEL_ENABLED="true"
//
// # Reloading
//
// Watcher observes the config file with fsnotify and hands each valid
// reload to a callback:
//
//	w, err := config.NewWatcher(cfg.File, func(next *config.Config) {
//		logger.SetLevel(next.Observability.Level())
//	}, logger.Logrus())
//	go w.Run(ctx)
package config
