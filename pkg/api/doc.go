// Package api assembles the SoftwareHub HTTP server.
//
// # Overview
//
// NewServer mounts the handler groups of the users, software and audit
// packages on a gorilla/mux router together with the operational routes
// (/health, /health/live, /health/ready, /version and /metrics):
//
//	/api/auth       login is public, everything else authenticated
//	/api/users      Admin
//	/api/softwares  authenticated, mutations for Editor and above
//	/api/audit      Admin
//
// # Middleware
//
// Every request passes recovery, request ID, logging and CORS before the
// router. Once a route matches, HTTP metrics, rate limiting and the body
// size limit apply. Unknown paths answer with a JSON 404:
//
//	{"error":"Route not found","path":"/nope","method":"GET"}
//
// With Options.Tracing the whole chain is wrapped in otelhttp.
package api
