// Package pipeline is the dispatch core of kiln. It resolves an ordered chain
// of steps for a source artifact's path, drives the chain with continue, halt
// and fan-out semantics, runs post-hooks while unwinding, and wraps any step
// failure exactly once in a Failure carrying the pipeline context.
//
// The package performs no file IO and parses no content; concrete steps live
// elsewhere and only need to satisfy Step.
package pipeline
