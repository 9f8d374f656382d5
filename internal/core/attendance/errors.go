package attendance

import "errors"

var (
	ErrInvalidEmployeeID = errors.New("attendance: invalid employee id")
	ErrInvalidPhone      = errors.New("attendance: invalid phone number")
	ErrInvalidWindow     = errors.New("attendance: invalid lookback window")
	ErrEmployeeNotFound  = errors.New("attendance: employee not found")
)
