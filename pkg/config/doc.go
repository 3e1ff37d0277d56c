// Package config loads warden configuration.
//
// Values come from Default, then the YAML file named by WARDEN_CONFIG_FILE,
// then WARDEN_* environment variables:
//
//	WARDEN_PORT="8080"
//	WARDEN_DATABASE_URL="postgres://warden@localhost/warden?sslmode=disable"
//	WARDEN_REDIS_URL="redis://localhost:6379/0"
//	WARDEN_INVITE_TOKEN_SECRET="<32+ bytes>"
//	WARDEN_SELF_HOSTED="false"
//	WARDEN_TRUSTED_DEVICE_ENCRYPTION="true"
//	WARDEN_RATE_LIMIT_PER_SECOND="20"
//	WARDEN_ACCESS_TOKEN_PURGE_SCHEDULE="0 * * * *"
//	WARDEN_LOG_LEVEL="info"
//	WARDEN_LOG_FORMAT="json"
//	WARDEN_OTEL_ENABLED="true"
//
// The same keys in YAML:
//
//	server:
//	  port: "8080"
//	  read_timeout: 15s
//	database:
//	  url: postgres://warden@localhost/warden
//	invites:
//	  token_secret: ...
//
// Usage:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
