package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrBackendTimeout        = errors.New("backend timeout")
	ErrBackendUnavailable    = errors.New("backend unavailable")
	ErrRetrievalUnavailable  = errors.New("retrieval unavailable")
	ErrTopicContextCorrupted = errors.New("topic context corrupted")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
