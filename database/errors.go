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
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// ConstraintKind classifies data-source errors across the supported
// drivers so callers can branch on the violated constraint instead of
// parsing driver-specific messages. The underlying error is always
// propagated unchanged; classification is a read-only view of it.
type ConstraintKind int

const (
	ConstraintUnknown ConstraintKind = iota
	ConstraintDuplicateKey
	ConstraintNotNull
	ConstraintForeignKey
	ConstraintCheck
	ConstraintDataTruncated
	ConstraintMissingTable
	ConstraintMissingColumn
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintDuplicateKey:
		return "duplicate key"
	case ConstraintNotNull:
		return "not null violation"
	case ConstraintForeignKey:
		return "foreign key violation"
	case ConstraintCheck:
		return "check constraint violation"
	case ConstraintDataTruncated:
		return "data truncated"
	case ConstraintMissingTable:
		return "missing table"
	case ConstraintMissingColumn:
		return "missing column"
	}
	return "unknown"
}

// ClassifyError maps a data-source error to a ConstraintKind. MySQL and
// PostgreSQL errors are matched on their driver error codes; SQLite (and
// anything else) falls back to message matching.
func ClassifyError(err error) ConstraintKind {
	if err == nil {
		return ConstraintUnknown
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062:
			return ConstraintDuplicateKey
		case 1048:
			return ConstraintNotNull
		case 1216, 1217, 1451, 1452:
			return ConstraintForeignKey
		case 3819:
			return ConstraintCheck
		case 1265:
			return ConstraintDataTruncated
		case 1146:
			return ConstraintMissingTable
		case 1054:
			return ConstraintMissingColumn
		}
		return ConstraintUnknown
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return ConstraintDuplicateKey
		case "23502":
			return ConstraintNotNull
		case "23503":
			return ConstraintForeignKey
		case "23514":
			return ConstraintCheck
		case "22001":
			return ConstraintDataTruncated
		case "42P01":
			return ConstraintMissingTable
		case "42703":
			return ConstraintMissingColumn
		}
		return ConstraintUnknown
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "unique constraint failed"),
		strings.Contains(s, "duplicate key value"):
		return ConstraintDuplicateKey
	case strings.Contains(s, "not null constraint failed"),
		strings.Contains(s, "not-null constraint"):
		return ConstraintNotNull
	case strings.Contains(s, "foreign key constraint failed"),
		strings.Contains(s, "foreign key violation"):
		return ConstraintForeignKey
	case strings.Contains(s, "check constraint failed"),
		strings.Contains(s, "check constraint"):
		return ConstraintCheck
	case strings.Contains(s, "data truncated"),
		strings.Contains(s, "string data right truncation"):
		return ConstraintDataTruncated
	case strings.Contains(s, "no such table"),
		strings.Contains(s, "undefined table"):
		return ConstraintMissingTable
	case strings.Contains(s, "no such column"),
		strings.Contains(s, "undefined column"):
		return ConstraintMissingColumn
	}
	return ConstraintUnknown
}

// IsDuplicateKeyError reports whether err is a unique or primary key
// violation on any supported driver.
func IsDuplicateKeyError(err error) bool {
	return ClassifyError(err) == ConstraintDuplicateKey
}

// IsForeignKeyError reports whether err is a foreign key violation.
func IsForeignKeyError(err error) bool {
	return ClassifyError(err) == ConstraintForeignKey
}

// IsMissingTableError reports whether err refers to a table that does
// not exist.
func IsMissingTableError(err error) bool {
	return ClassifyError(err) == ConstraintMissingTable
}
