// Package api serves the repo container and repo file endpoints over HTTP.
//
// Every endpoint is a POST taking and returning JSON. Request level failures
// are answered with status 400 and {"detail": CODE}; per-item failures of
// create, edit and delete batches are part of a 200 response.
package api
