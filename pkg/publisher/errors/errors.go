package errors

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalid     = errors.New("invalid")
	ErrStorage     = errors.New("storage error")
	ErrBlobStore   = errors.New("blob store error")
	ErrVCS         = errors.New("vcs error")
	ErrArchive     = errors.New("archive error")
	ErrIndexMerge  = errors.New("index merge error")
	ErrMetadata    = errors.New("metadata error")
	ErrEventStore  = errors.New("event store error")
	ErrConflict    = errors.New("conflict")
	ErrPrivatePack = errors.New("private pack error")
)
