// Package pipeline runs every request through an ordered list of stages
// before it reaches a route handler.
//
// A Stage inspects or mutates the shared *Request and returns an Outcome:
// Continue hands the request to the next stage, Respond writes an envelope
// and stops, Fail stops and hands the error to the ErrorHandler. Stages
// that also implement Finisher are called back with the final status after
// everything downstream has run.
//
// Stages are adapted into gin with Pipeline.Handler, so global stages are
// installed with engine.Use and route stages in front of route handlers:
//
//	p := pipeline.New(pipeline.WithLogger(logger))
//	engine.Use(p.Recovery(), p.Handler(pipeline.RequestID(), p.Logging()))
//	engine.POST("/login", p.Handler(pipeline.Validate(v, schema)), login)
//	engine.NoRoute(p.NotFound())
package pipeline
