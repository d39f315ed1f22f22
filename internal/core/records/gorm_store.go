package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore reads and writes records in plain SQL tables, one table per
// table id, keyed by an "id" column.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new record store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, tableID, recordID string) (formula.Row, error) {
	if err := ValidateTable(tableID); err != nil {
		return nil, err
	}
	row := map[string]interface{}{}
	err := s.db.WithContext(ctx).Table(tableID).Where(clause.Eq{Column: clause.Column{Name: IDField}, Value: recordID}).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, tableID, recordID)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s/%s: %w", tableID, recordID, err)
	}
	return formula.Row(row), nil
}

func (s *GormStore) Insert(ctx context.Context, tableID string, row formula.Row) (formula.Row, error) {
	if err := ValidateTable(tableID); err != nil {
		return nil, err
	}
	out := withID(row)
	if err := s.db.WithContext(ctx).Table(tableID).Create(map[string]interface{}(out)).Error; err != nil {
		return nil, fmt.Errorf("insert record into %s: %w", tableID, err)
	}
	return out, nil
}

func (s *GormStore) Update(ctx context.Context, tableID, recordID string, fields formula.Row) error {
	if err := ValidateTable(tableID); err != nil {
		return err
	}
	updates := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if k != IDField {
			updates[k] = v
		}
	}
	if len(updates) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Table(tableID).Where(clause.Eq{Column: clause.Column{Name: IDField}, Value: recordID}).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update record %s/%s: %w", tableID, recordID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, tableID, recordID)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, tableID, recordID string) error {
	if err := ValidateTable(tableID); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Exec("DELETE FROM ? WHERE ? = ?", clause.Table{Name: tableID}, clause.Column{Name: IDField}, recordID)
	if result.Error != nil {
		return fmt.Errorf("delete record %s/%s: %w", tableID, recordID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, tableID, recordID)
	}
	return nil
}

// ListFields derives field metadata from the table's column types
func (s *GormStore) ListFields(ctx context.Context, tableID string) ([]formula.FieldMeta, error) {
	if err := ValidateTable(tableID); err != nil {
		return nil, err
	}
	columns, err := s.db.WithContext(ctx).Migrator().ColumnTypes(tableID)
	if err != nil {
		return nil, fmt.Errorf("list fields of %s: %w", tableID, err)
	}
	fields := make([]formula.FieldMeta, 0, len(columns))
	for _, col := range columns {
		fields = append(fields, formula.FieldMeta{
			ID:   col.Name(),
			Name: col.Name(),
			Type: fieldType(col.DatabaseTypeName()),
		})
	}
	return fields, nil
}

func fieldType(dbType string) formula.FieldType {
	t := strings.ToUpper(dbType)
	switch {
	case strings.Contains(t, "BOOL"):
		return formula.FieldCheckbox
	case strings.Contains(t, "INT"), strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"),
		strings.Contains(t, "REAL"), strings.Contains(t, "FLOAT"), strings.Contains(t, "DOUBLE"):
		return formula.FieldNumber
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return formula.FieldDate
	case strings.Contains(t, "[]"), strings.HasPrefix(t, "_"):
		return formula.FieldMultiSelect
	}
	return formula.FieldText
}
