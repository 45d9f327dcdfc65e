// Package middleware provides HTTP middleware for authentication, role
// checks and rate limiting.
//
// # Authentication
//
// AuthMiddleware validates the Bearer JWT and stores an *auth.AuthContext
// in the request context:
//
//	authn := middleware.NewAuthMiddleware(tokenManager, logger)
//	api := router.PathPrefix("/api/users").Subrouter()
//	api.Use(authn.Handler, middleware.RequireAdmin)
//
// A missing token is answered with 401, an invalid or expired one with 403.
// RequireRole, RequireAdmin and RequireEditor answer 403 when the caller's
// role is not admitted.
//
// # Rate Limiting
//
// RateLimitMiddleware works over any Limiter. RateLimiter is an in-process
// token bucket; DistributedRateLimiter counts fixed windows in Redis and is
// used when Redis is configured. Limiter errors fail open.
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, cfg, "")
//	router.Use(middleware.NewRateLimitMiddleware(limiter, logger).Handler)
package middleware
