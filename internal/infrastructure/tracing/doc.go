/*
Package tracing tags control API requests and the notebook server calls they
cause with a shared trace ID.

# Usage

	tracer := tracing.New("notebookd", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	// Outbound calls carry the caller's trace
	tracing.Inject(ctx, req.Header)

	// Manual spans
	span, ctx := tracer.StartSpan(ctx, "open")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

# Headers

  - X-Trace-ID: identifies the whole request flow
  - X-Span-ID: identifies the current operation

Completed spans are logged at debug level by a single collector goroutine;
when its buffer is full spans are dropped rather than blocking requests.
*/
package tracing
