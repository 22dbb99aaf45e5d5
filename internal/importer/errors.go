package importer

import "fmt"

// Stages a StageError can name.
const (
	StageExtract = "extract"
	StageLoad    = "load"
	StageAttach  = "attach"
	StageRelate  = "relate"
)

// StageError is a fatal import failure tagged with where it happened.
type StageError struct {
	Stage string
	// Path is the archive, file, folder or workspace being processed.
	Path string
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage=%s path=%s: %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage, path string, err error) error {
	return &StageError{Stage: stage, Path: path, Err: err}
}
