// Package config handles configuration loading for bylexa-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${BYLEXA_JWT_SECRET}"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  addr: "localhost:8765"   # WebSocket listen address
//	  queue_size: 1024         # Dispatcher work queue bound
//	  send_buffer: 64          # Per-connection outbound frame buffer
//	  ping_interval: "30s"     # "0s" disables liveness probing
//	  pong_timeout: "75s"
//
// Authentication:
//
//	auth:
//	  token: "${BYLEXA_TOKEN}"             # Local bearer token
//	  jwt_secret: "${BYLEXA_JWT_SECRET}"   # Enables HS256 verification
//	  allow_structural: true               # Reference shape-and-expiry check
//
// Issued-token store:
//
//	database:
//	  path: "~/.bylexa/gateway.db"
//
// Command interpreter:
//
//	intent:
//	  endpoint: "http://localhost:8000/api/process"
//	  timeout: "30s"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
