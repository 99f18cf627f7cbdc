package errors

import "fmt"

// WrapStorage wraps an error with local storage context
func WrapStorage(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, context, err)
}

// WrapBlobStore wraps an error with object store context
func WrapBlobStore(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrBlobStore, context, err)
}

// WrapVCS wraps an error with version control context
func WrapVCS(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrVCS, context, err)
}

// WrapArchive wraps an error with zip packing context
func WrapArchive(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrArchive, context, err)
}

// WrapIndexMerge wraps an error with index merge context
func WrapIndexMerge(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrIndexMerge, context, err)
}

// WrapMetadata wraps an error with pack metadata context
func WrapMetadata(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrMetadata, context, err)
}

// WrapInvalid wraps an error with invalid input context
func WrapInvalid(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrInvalid, context, err)
}

// WrapNotFound wraps an error with not found context
func WrapNotFound(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrNotFound, context, err)
}
