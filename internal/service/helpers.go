package service

import (
	"errors"

	"gorm.io/gorm"
)

// translateNotFound maps a gorm record-not-found error onto the given sentinel.
func translateNotFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
