// Package database manages the SQLite connection behind the delivery
// audit log.
//
// This package manages:
//   - Opening the database file (creating the directory if needed)
//   - WAL mode and busy-timeout configuration
//   - Health checks and lifecycle management
//
// Schema creation is owned by the repositories that use the connection
// (see internal/audit); this package hands out a configured *sql.DB and
// nothing more.
package database
