// Package repository provides a generic Bun repository that executes query
// plans (filter, sort, count, window) and the transactional writes used by
// the mutation layer.
package repository
