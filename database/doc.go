// Package database provides connection management for the repo store:
// manager and factory, the global connection, migrations, foreign keys,
// query hooks, driver error classification and the logging adapter, all
// built on top of Bun.
package database
