package shop

import "errors"

var (
	ErrRateLimited       = errors.New("checkout rate limited")
	ErrUnknownProduct    = errors.New("unknown product")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOutOfStock        = errors.New("out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyCancelled  = errors.New("order already cancelled")
	ErrDuplicateOrder    = errors.New("order already exists")

	// ErrConflict menandakan compare-and-set kalah balapan; selalu
	// diselesaikan di dalam engine, tidak pernah bocor ke caller luar.
	ErrConflict = errors.New("concurrent transition conflict")
)
