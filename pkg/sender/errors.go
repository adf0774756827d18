package sender

import "errors"

var (
	ErrServerURLRequired = errors.New("server url is required")
	errServerStatus      = errors.New("server returned non-success status")
)
