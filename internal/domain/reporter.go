package domain

// Reporter receives recoverable diagnostics. They never abort a run.
type Reporter interface {
	Warnf(format string, args ...interface{})
}

type discardReporter struct{}

func (discardReporter) Warnf(string, ...interface{}) {}

// DiscardReporter drops every diagnostic.
var DiscardReporter Reporter = discardReporter{}
