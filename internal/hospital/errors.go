package hospital

import "errors"

var (
	// ErrValidation is wrapped by every input validation failure.
	ErrValidation = errors.New("validation failed")

	ErrDepartmentExists   = errors.New("department already exists")
	ErrDepartmentNotFound = errors.New("department not found")
	ErrCapacityExceeded   = errors.New("department at capacity")
	ErrAlreadyDischarged  = errors.New("patient already discharged")
	ErrPatientNotFound    = errors.New("patient not found")
	ErrStaffNotFound      = errors.New("staff member not found")
	ErrAlreadyPlaced      = errors.New("person already placed in a department")
)
