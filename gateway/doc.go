// Package gateway is the request-optimization layer between the query
// transport and the backing stores. Each incoming query is scored by
// the complexity analyzer, gated against configured limits, answered
// from the response cache when possible, and otherwise resolved through
// request-scoped batch loaders that coalesce duplicate fetches.
//
// The package also carries the HTTP surface: the query endpoint, a
// health check, the playground UI and CORS handling, with the same
// start/stop lifecycle the rest of the service uses.
package gateway
