/*
Package tracing provides lightweight in-process tracing.

# Overview

Spans are created per inbound HTTP request and per classifier attempt, then
handed to a buffered collector that writes them to the structured log. Trace
context travels in the request context and in HTTP headers.

# Usage

	tracer := tracing.New("phishguard", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "classifier.check_url")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

# Trace Format

- X-Trace-ID: identifier for the entire request flow
- X-Span-ID: identifier for the current operation

Clients may send both headers to join an existing trace; the response always
carries the IDs of the server span.
*/
package tracing
