package model

// Path represents a file system path.
type Path string

// ScriptInfo describes a discovered script before it is run.
type ScriptInfo struct {
	Path     Path
	Lines    int
	Relevant int
}
