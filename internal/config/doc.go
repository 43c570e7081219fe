// Package config loads and validates configuration from environment variables.
//
// # Configuration Loading
//
//	cfg, err := config.Load()
//	if err != nil { ... }
//	if err := cfg.Validate(); err != nil { ... }
//
// Validate reports every problem at once, joined with errors.Join.
//
// # Environment Variables
//
//	DB_HOST, DB_PORT          - SurrealDB address (default: localhost:8000)
//	DB_NAMESPACE, DB_DATABASE - SurrealDB namespace and database
//	DB_USER, DB_PASSWORD      - SurrealDB credentials
//	EVENTS_BACKEND            - local, redis or none (default: local)
//	REDIS_ADDR                - Redis address when EVENTS_BACKEND=redis
//	UNREAD_MAX_MENTIONS       - mentions kept per unread entry (default: 100)
//	UNREAD_CAS_RETRIES        - attempts per unread update (default: 8)
//	FANOUT_LIMIT              - concurrent unread writes per message (default: 16)
//	OFFICIAL_BOTS             - comma separated bot user ids added to a new user's group
//	ONBOARD_GROUP_NAME        - name of that group (default: Welcome)
//	LOG_LEVEL                 - debug, info, warn or error (default: info)
package config
