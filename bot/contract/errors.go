package contract

import "errors"

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("friend not found")
	ErrStore      = errors.New("store operation failed")
	ErrDispatcher = errors.New("answer dispatch failed")
)
