package errors

import (
	"errors"
	"fmt"
)

// FatalKind classifies conditions that end a run.
type FatalKind int

const (
	FatalMissingIndexFolder FatalKind = iota + 1
	FatalIndexDownload
	FatalGenerationMismatch
	FatalCorePacks
	FatalEmptyPublicManifest
	FatalExtractDir
	FatalIndexUpload
	FatalIndexUpToDate
	FatalIndexCheck
	FatalPackSelection
	FatalArtifacts
)

var fatalKindNames = map[FatalKind]string{
	FatalMissingIndexFolder:  "missing index folder",
	FatalIndexDownload:       "index download failed",
	FatalGenerationMismatch:  "index generation mismatch",
	FatalCorePacks:           "core packs check failed",
	FatalEmptyPublicManifest: "public index manifest is empty",
	FatalExtractDir:          "extract directory creation failed",
	FatalIndexUpload:         "index upload failed",
	FatalIndexUpToDate:       "index already up to date",
	FatalIndexCheck:          "index status check failed",
	FatalPackSelection:       "pack selection failed",
	FatalArtifacts:           "packs artifacts extraction failed",
}

func (k FatalKind) String() string {
	if name, ok := fatalKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("fatal(%d)", int(k))
}

// FatalError ends the run. Only the top-level command decides the process
// exit code from it; inner components return it and never exit themselves.
type FatalError struct {
	Kind FatalKind
	Err  error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for the fatal condition. An index
// that is already up to date means there is nothing to publish, which is a
// successful no-op run.
func (e *FatalError) ExitCode() int {
	if e.Kind == FatalIndexUpToDate {
		return 0
	}
	return 1
}

// Fatal builds a FatalError of the given kind.
func Fatal(kind FatalKind, err error) error {
	return &FatalError{Kind: kind, Err: err}
}

// AsFatal reports whether err carries a FatalError and returns it.
func AsFatal(err error) (*FatalError, bool) {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return fatal, true
	}
	return nil, false
}
