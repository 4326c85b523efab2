package database

import (
	"errors"
	"strings"
)

var (
	ErrNotFound               = errors.New("record not found")
	ErrConcurrentModification = errors.New("record was modified concurrently")
	ErrDuplicate              = errors.New("duplicate record")
	ErrInstantOutOfRange      = errors.New("instant out of storable range")
	ErrUnboundedFilter        = errors.New("booking filter needs a booker or an item set")
)

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
