// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
//
// Each component of the control plane declares its own config struct with
// `env` tags (see pg.Config, redis.Config, mongo.Config) and loads it at
// startup:
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
package config
