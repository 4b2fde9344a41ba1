/*
 * Copyright 2025 finch-orm.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// ForeignKeyConstraint describes a foreign key relationship between tables.
type ForeignKeyConstraint struct {
	Table           string
	Column          string
	ReferenceTable  string
	ReferenceColumn string
	OnDelete        string // CASCADE, RESTRICT, SET NULL, NO ACTION
	OnUpdate        string // CASCADE, RESTRICT, SET NULL, NO ACTION
	ConstraintName  string
}

// GenerateConstraintName returns the explicit name or a derived name.
func (fk *ForeignKeyConstraint) GenerateConstraintName() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// GenerateSQL returns the ALTER TABLE statement to add the constraint.
func (fk *ForeignKeyConstraint) GenerateSQL() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)",
		fk.Table, fk.GenerateConstraintName(), fk.Column, fk.ReferenceTable, fk.ReferenceColumn)
	if fk.OnDelete != "" {
		fmt.Fprintf(&sb, " ON DELETE %s", fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		fmt.Fprintf(&sb, " ON UPDATE %s", fk.OnUpdate)
	}
	return sb.String()
}

func (fk *ForeignKeyConstraint) validate() []error {
	var errs []error
	if fk.Table == "" {
		errs = append(errs, fmt.Errorf("table name cannot be empty"))
	}
	if fk.Column == "" {
		errs = append(errs, fmt.Errorf("column name cannot be empty: %s", fk.Table))
	}
	if fk.ReferenceTable == "" {
		errs = append(errs, fmt.Errorf("reference table name cannot be empty: %s.%s", fk.Table, fk.Column))
	}
	if fk.ReferenceColumn == "" {
		errs = append(errs, fmt.Errorf("reference column name cannot be empty: %s.%s -> %s", fk.Table, fk.Column, fk.ReferenceTable))
	}
	if fk.OnDelete != "" && !validReferentialAction(fk.OnDelete) {
		errs = append(errs, fmt.Errorf("invalid delete policy %q on constraint %s", fk.OnDelete, fk.GenerateConstraintName()))
	}
	if fk.OnUpdate != "" && !validReferentialAction(fk.OnUpdate) {
		errs = append(errs, fmt.Errorf("invalid update policy %q on constraint %s", fk.OnUpdate, fk.GenerateConstraintName()))
	}
	return errs
}

func validReferentialAction(action string) bool {
	switch strings.ToUpper(action) {
	case "CASCADE", "RESTRICT", "SET NULL", "NO ACTION":
		return true
	}
	return false
}

// ForeignKeyManager applies and validates a set of foreign key constraints.
type ForeignKeyManager struct {
	constraints []ForeignKeyConstraint
	logger      Logger
}

// NewForeignKeyManager creates a manager for the given constraints.
func NewForeignKeyManager(logger Logger, constraints ...ForeignKeyConstraint) *ForeignKeyManager {
	return &ForeignKeyManager{
		constraints: constraints,
		logger:      logger,
	}
}

// getForeignKeyConstraints returns the code-defined default constraints.
func getForeignKeyConstraints() []ForeignKeyConstraint {
	return []ForeignKeyConstraint{}
}

// AddAllForeignKeys applies every constraint, logging and skipping the
// ones the dialect or existing schema rejects. Constraint addition is
// best effort: a database that does not support ALTER TABLE ADD
// CONSTRAINT still works without referential enforcement.
func (fkm *ForeignKeyManager) AddAllForeignKeys(ctx context.Context, db bun.IDB) error {
	applied := 0
	for _, constraint := range fkm.constraints {
		if _, err := db.ExecContext(ctx, constraint.GenerateSQL()); err != nil {
			if fkm.logger != nil {
				fkm.logger.Debug("Skipped foreign key constraint", "constraint", constraint.GenerateConstraintName(), "error", err.Error())
			}
			continue
		}
		applied++
	}
	if fkm.logger != nil && len(fkm.constraints) > 0 {
		fkm.logger.Debug("Applied foreign key constraints", "applied", applied, "total", len(fkm.constraints))
	}
	return nil
}

// RemoveForeignKey drops a named foreign key from a table.
func (fkm *ForeignKeyManager) RemoveForeignKey(ctx context.Context, db bun.IDB, tableName, constraintName string) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", tableName, constraintName))
	return err
}

// GetConstraintsByTable returns the constraints defined for a table.
func (fkm *ForeignKeyManager) GetConstraintsByTable(tableName string) []ForeignKeyConstraint {
	var result []ForeignKeyConstraint
	for _, constraint := range fkm.constraints {
		if strings.EqualFold(constraint.Table, tableName) {
			result = append(result, constraint)
		}
	}
	return result
}

// ListAllConstraints returns all configured constraints.
func (fkm *ForeignKeyManager) ListAllConstraints() []ForeignKeyConstraint {
	return fkm.constraints
}

// ValidateConstraints checks the configured constraints for common issues.
func (fkm *ForeignKeyManager) ValidateConstraints() []error {
	var errs []error
	for _, constraint := range fkm.constraints {
		errs = append(errs, constraint.validate()...)
	}
	return errs
}
