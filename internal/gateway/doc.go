// Package gateway wires the gateway's components into an HTTP server.
//
// New builds every component from a *config.Config: the service registry
// and its circuit breakers, the proxy dispatcher, the rate limiter, the
// user service and token signer, the validator and the health checker. It
// then mounts the routes on a gin engine behind the global request
// pipeline:
//
//	recovery → request id → trace → logging → security headers → CORS →
//	body decode → sanitize → global rate limit → route stages → handler
//
// Unmatched routes end in a ROUTE_NOT_FOUND envelope.
//
// # Usage
//
//	gw, err := gateway.New(cfg, gateway.WithLogger(logger), gateway.WithMetrics(metrics))
//	if err != nil {
//	    return err
//	}
//	if err := gw.Start(ctx); err != nil {
//	    return err
//	}
//	defer gw.Stop(ctx)
package gateway
