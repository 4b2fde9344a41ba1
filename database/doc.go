// Package database provides connection management, migrations, foreign key
// handling, configuration types, logging, health checks, and related
// utilities built on top of Bun.
package database
