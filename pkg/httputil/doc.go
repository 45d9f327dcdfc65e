// Package httputil provides HTTP utilities for standardized request and
// response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteErrorMessage(w, http.StatusNotFound, "User not found")
//	httputil.WriteFailure(w, "Failed to fetch audit logs", err)
//	httputil.WriteValidationError(w, map[string]string{"email": "is required"})
//
// Every error body has the shape {"error": "...", "message": "...", "details": {...}}
// with message and details omitted when empty.
//
// # Request Parsing
//
//	var req CreateUserRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	page := httputil.QueryIntOrDefault(r, "page", 1)
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.CORSMiddleware(opts),
//	)(router)
package httputil
