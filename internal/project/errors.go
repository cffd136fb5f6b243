package project

import "errors"

var (
	ErrNotFound     = errors.New("project: not found")
	ErrConflict     = errors.New("project: conflict")
	ErrInvalidInput = errors.New("project: invalid input")
)
