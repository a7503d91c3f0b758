// Package projection serializes listed rows into id/data records and
// attaches resolved relations such as a container's user.
package projection
