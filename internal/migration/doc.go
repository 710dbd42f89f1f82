/*
Package migration versions the SQL schema of the credential store with
golang-migrate.

# Overview

The migrations for PostgreSQL, MySQL and SQLite are embedded in the binary
and applied to a handle opened elsewhere, normally the gorm pool of
internal/database. The migrator never closes that handle.

# Types

  - Migrator: Up, Down, DownAll, Steps, Goto, Force, Version, Status, Info
  - Dialect: selects the embedded directory and the golang-migrate driver
  - CLI: terminal output for the agentchat migrate command
*/
package migration
