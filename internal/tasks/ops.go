package tasks

// Operation names shared between the call sites that enqueue work and
// the wiring that registers handlers.
const (
	OpDocumentProcess    = "document.process"
	OpRedactionPropagate = "redaction.propagate"
	OpCaseExport         = "case.export"
	OpTrainingRun        = "training.run"
)
