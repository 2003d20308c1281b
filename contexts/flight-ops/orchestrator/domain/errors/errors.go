package errors

import "errors"

var (
	ErrMissionNotFound  = errors.New("mission not found")
	ErrMissionExists    = errors.New("mission already exists")
	ErrMissionTerminal  = errors.New("mission is already in a terminal state")
	ErrInvalidTask      = errors.New("invalid mission task")
	ErrMissionNotActive = errors.New("mission is not active")
)
