// Package query provides typed dynamic query composition on top of Bun:
// immutable predicate trees, a conditional predicate builder, a query
// descriptor covering joins, grouping, ordering, and pagination, projection
// mapping with pluggable binding strategies, and an executor with list,
// unique, and first retrieval semantics.
package query
