// Package migrations embeds the database schema. The server applies it on
// startup in dev mode; integration test containers apply it when they start.
// Production deployments run the SQL files through their own migration
// tooling.
package migrations

import _ "embed"

//go:embed 001_init.sql
var Schema string
