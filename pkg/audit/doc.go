// Package audit records administrative actions and answers queries over them.
//
// # Writing
//
// Every mutating operation in SoftwareHub calls Writer.Record. Record has no
// return value: store errors, timeouts, panics, invalid entries and breaker
// drops are logged at error level and counted in
// softwarehub_audit_write_failures_total, and the caller carries on.
//
//	writer := audit.NewStoreWriter(store,
//		audit.WithLogger(logger),
//		audit.WithMetrics(metrics),
//		audit.WithBreaker(audit.NewBreaker(5, 30*time.Second)),
//		audit.WithInvalidator(statsCache),
//	)
//	writer.Record(ctx, audit.Entry{
//		ActorID:   principal.ActorID(),
//		ActorName: principal.Name,
//		Action:    "Criação de usuário",
//		Details:   "Usuário 'Ana' foi criado com perfil Editor",
//		Type:      audit.TypeCreate,
//	})
//
// The append runs under context.WithoutCancel(ctx) with its own timeout, so
// a client hanging up does not lose the event. AsyncWriter moves the append
// onto a worker pool; MultiWriter fans out, typically to a FileWriter mirror.
//
// # Reading
//
// QueryEngine.Query filters by actor ID (exact), actor name (case-insensitive
// substring), type and an inclusive date range, newest first. Page and limit
// are clamped, never rejected:
//
//	page < 1      -> 1
//	limit < 1     -> 1
//	limit > max   -> max (200 by default)
//
// QueryEngine.Stats returns totals, today's count (from local midnight), the
// ten busiest actors and a per-type histogram, optionally cached in Redis.
//
// # Storage
//
// SQLStore works on postgres and sqlite through storage.Dialect; MemoryStore
// is used in tests and with the memory driver. Stores are append-only.
package audit
