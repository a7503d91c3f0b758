// Package query turns the client field descriptors and pagination object of
// a list request into an immutable Plan of filters, sort keys, visible
// fields and a row window.
package query
