package errors

import "errors"

var (
	ErrInvalidAllocationInput = errors.New("invalid allocation input")
	ErrFleetShortage          = errors.New("not enough available drones")
	ErrDroneNotFound          = errors.New("drone not found")
	ErrDroneNotAvailable      = errors.New("drone is not available")
	ErrDuplicateReservation   = errors.New("mission already holds a reservation")
)
