// Package repository provides a generic repository abstraction built on Bun
// for CRUD operations, descriptor-based search, pagination, transactions,
// and upsert support.
package repository
