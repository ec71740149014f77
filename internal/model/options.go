package model

// Options are the run options shared by the runner and the aggregator.
type Options struct {
	// SkipUncovered drops scripts that were never executed from the result.
	SkipUncovered bool
	// Mute suppresses relaying the traced command's output.
	Mute bool
}
