// Package mutation applies client create, edit and delete batches. Every
// item is validated against the field registry and persisted in its own
// transaction; failures are reported per item under the client's key.
package mutation
