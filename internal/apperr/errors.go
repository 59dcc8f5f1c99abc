package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrNotRegularFile = errors.New("not a regular file")
	ErrBuild          = errors.New("build failed")
)
