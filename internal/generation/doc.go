// Package generation provides interfaces and implementations for interacting
// with external AI/LLM services for content generation. It abstracts the
// details of LLM API integration (Gemini), allowing the worker pool to run
// model invocations without coupling to a specific external service, and
// classifies every invocation failure as transient or permanent so the
// queue-level retry policy can act on the distinction.
package generation
