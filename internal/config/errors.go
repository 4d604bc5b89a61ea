package config

import "errors"

var (
	ErrSyntax  = errors.New("config: syntax")
	ErrSchema  = errors.New("config: schema violation")
	ErrInvalid = errors.New("config: invalid")
)
