package repository

import "errors"

var (
	// ErrClaimLost means a conditional write found the claim no longer
	// held; the claim timeout has handed the post to another worker.
	ErrClaimLost = errors.New("claim no longer held")
)
