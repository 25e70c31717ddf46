package models

// APIError is the body of non-200 responses produced by the service layer
// itself (authentication, rate limiting) rather than by the pipeline. The
// pipeline's failures ride inside ScrapeResult instead.
type APIError struct {
	Error string `json:"error"`
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}
