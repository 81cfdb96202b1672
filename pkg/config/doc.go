// Package config loads configuration structs from environment variables,
// reading a .env file once if present. Parsing is driven by `env` struct
// tags; see github.com/caarlos0/env for tag syntax.
package config
