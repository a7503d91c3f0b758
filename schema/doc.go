// Package schema declares the static field table of every repo entity and
// answers whether a field exists, is protected, or is read-only.
package schema
