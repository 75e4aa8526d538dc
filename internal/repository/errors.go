package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// isUniqueViolation detects duplicate keys; inside transactions gorm does not always
// translate the driver error, so the SQLSTATE is checked as well.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "SQLSTATE 23505")
}

// forUpdate locks the selected rows until the surrounding transaction ends.
var forUpdate = clause.Locking{Strength: "UPDATE"}
