package records

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
	"github.com/google/uuid"
)

// IDField is the primary key column of every record table
const IDField = "id"

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidTable = errors.New("invalid table name")
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateTable rejects table ids that are not plain SQL identifiers
func ValidateTable(tableID string) error {
	if !tableNameRe.MatchString(tableID) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, tableID)
	}
	return nil
}

// withID copies row and assigns a uuid when it has no id
func withID(row formula.Row) formula.Row {
	out := make(formula.Row, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	if id, ok := out[IDField]; !ok || id == nil || id == "" {
		out[IDField] = uuid.New().String()
	}
	return out
}
