// Package validators contains the built-in pipeline validators and the
// registry that turns configuration entries into an ordered validator list.
//
// Store-backed validators propagate store errors as infrastructure errors by
// default. When configured fail-closed they instead reject the pipeline with
// pipeline.FailureCheckUnavailable, keeping the store error as the cause.
package validators
