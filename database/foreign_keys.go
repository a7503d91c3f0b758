/*
 * Copyright 2025 tomoncle.
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
	"github.com/uptrace/bun/dialect"
)

// ForeignKeyConstraint describes a foreign key relationship between tables.
type ForeignKeyConstraint struct {
	Table           string
	Column          string
	ReferenceTable  string
	ReferenceColumn string
	OnDelete        string // CASCADE, RESTRICT, SET NULL, NO ACTION
	OnUpdate        string
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
	sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)",
		fk.Table, fk.GenerateConstraintName(), fk.Column, fk.ReferenceTable, fk.ReferenceColumn)
	if fk.OnDelete != "" {
		sql += fmt.Sprintf(" ON DELETE %s", fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		sql += fmt.Sprintf(" ON UPDATE %s", fk.OnUpdate)
	}
	return sql
}

// ForeignKeyManager adds and validates foreign key constraints.
type ForeignKeyManager struct {
	constraints []ForeignKeyConstraint
	logger      Logger
}

// NewForeignKeyManager creates a manager with the built-in constraints.
func NewForeignKeyManager(logger Logger) *ForeignKeyManager {
	return &ForeignKeyManager{constraints: defaultForeignKeyConstraints(), logger: logger}
}

// Containers reference their owner, files reference their container. Rows
// are soft deleted, so deletes are restricted.
func defaultForeignKeyConstraints() []ForeignKeyConstraint {
	return []ForeignKeyConstraint{
		{
			Table:           "repo_containers",
			Column:          "user_id",
			ReferenceTable:  "users",
			ReferenceColumn: "id",
			OnDelete:        "SET NULL",
		},
		{
			Table:           "repo_files",
			Column:          "container_id",
			ReferenceTable:  "repo_containers",
			ReferenceColumn: "id",
			OnDelete:        "RESTRICT",
		},
	}
}

// AddAllForeignKeys adds every constraint. SQLite can not alter constraints
// onto existing tables, so it is skipped there.
func (fkm *ForeignKeyManager) AddAllForeignKeys(ctx context.Context, db bun.IDB) error {
	if db.Dialect().Name() == dialect.SQLite {
		if fkm.logger != nil {
			fkm.logger.Debug("Skipping foreign keys on sqlite")
		}
		return nil
	}
	for _, constraint := range fkm.constraints {
		if _, err := db.ExecContext(ctx, constraint.GenerateSQL()); err != nil {
			if fkm.logger != nil {
				fkm.logger.Debug("Failed to add foreign key constraint", "constraint", constraint.GenerateConstraintName(), "error", err.Error())
			}
			continue
		}
		if fkm.logger != nil {
			fkm.logger.Debug("Added foreign key constraint", "constraint", constraint.GenerateConstraintName())
		}
	}
	return nil
}

// ListAllConstraints returns all configured constraints.
func (fkm *ForeignKeyManager) ListAllConstraints() []ForeignKeyConstraint {
	return fkm.constraints
}

// ValidateConstraints checks the configured constraints for common issues.
func (fkm *ForeignKeyManager) ValidateConstraints() []error {
	var errs []error
	validActions := []string{"CASCADE", "RESTRICT", "SET NULL", "NO ACTION"}
	for _, c := range fkm.constraints {
		if c.Table == "" || c.Column == "" || c.ReferenceTable == "" || c.ReferenceColumn == "" {
			errs = append(errs, fmt.Errorf("incomplete constraint: %s.%s -> %s.%s", c.Table, c.Column, c.ReferenceTable, c.ReferenceColumn))
			continue
		}
		for _, action := range []string{c.OnDelete, c.OnUpdate} {
			if action == "" {
				continue
			}
			valid := false
			for _, a := range validActions {
				if strings.EqualFold(action, a) {
					valid = true
					break
				}
			}
			if !valid {
				errs = append(errs, fmt.Errorf("invalid referential action: %s, constraint: %s", action, c.GenerateConstraintName()))
			}
		}
	}
	return errs
}
