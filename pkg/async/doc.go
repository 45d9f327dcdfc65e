// Package async provides panic-safe background execution.
//
// SafeGo runs a fire-and-forget task with a timeout. Failures are logged.
//
//	async.SafeGo(ctx, logger, 10*time.Second, "gauge refresh", refresh)
//
// WorkerPool runs tasks on a bounded queue. The audit AsyncWriter uses
// TrySubmit so that a full queue never blocks the request that produced the
// event, and Shutdown drains whatever is queued.
//
//	pool := async.NewWorkerPool(ctx, async.PoolConfig{Workers: 4, TaskName: "audit"})
//	if err := pool.TrySubmit(task); err != nil { ... }
//	pool.Shutdown(10 * time.Second)
package async
