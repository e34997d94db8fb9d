// Package api exposes the status endpoint of a running crawl: health,
// Prometheus metrics, the live scheduler snapshot and stored profile keys.
package api
