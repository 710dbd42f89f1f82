// Package server manages the lifecycle of the HTTP servers behind the
// operator API and the metrics endpoint: background start, graceful
// shutdown and propagation of serve errors.
package server
