package domain

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrDuplicate    = errors.New("duplicate resource")
	ErrNotFound     = errors.New("not found")
	ErrTransport    = errors.New("transport error")
	ErrParse        = errors.New("parse error")
	ErrStore        = errors.New("store error")
)
