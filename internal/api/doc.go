// Package api hosts the HTTP server, middleware, and JSON handlers of the
// search engine. Routes:
//   - GET /api/startIndexing and /api/stopIndexing control campaigns.
//   - POST /api/indexPage reindexes one page.
//   - GET /api/statistics reports per-site progress.
//   - GET /api/search runs ranked queries.
//   - GET /healthz and /metrics for probes and Prometheus scraping.
//
// Every /api response carries the {"result": bool, "error": string} envelope.
package api
