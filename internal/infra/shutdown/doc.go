// Package shutdown provides graceful shutdown for goudanet processes.
//
// A Handler waits for SIGINT/SIGTERM, a programmatic Trigger (for example
// a fatal desync) or context cancellation, then runs registered hooks in
// reverse registration order under a timeout.
//
// Usage:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown(func(ctx context.Context) error { return sess.Close() })
//	err := h.Wait(ctx)
package shutdown
