package catalog

import "errors"

// Catalog errors.
var (
	ErrGroupNotFound = errors.New("group not found")
	ErrInvalidStatus = errors.New("invalid status filter")
)
