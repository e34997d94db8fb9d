// Package crawler defines the core types and interfaces of the harvesting
// engine: requests, documents, records, the profile store contract, extraction
// rules and the error taxonomy shared by the fetcher, scheduler and emitter.
package crawler
