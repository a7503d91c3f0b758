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
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLError classifies driver errors independent of the backend.
type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoTableErr
	NoColumnErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
)

var sqlErrorNames = map[SQLError]string{
	UnknownErr:                  "unknown",
	NoRowsErr:                   "no_rows",
	NoTableErr:                  "no_table",
	NoColumnErr:                 "no_column",
	DuplicateKeyErr:             "duplicate_key",
	NotNullViolationErr:         "not_null_violation",
	ForeignKeyViolationErr:      "foreign_key_violation",
	CheckConstraintViolationErr: "check_violation",
	DataTruncatedErr:            "data_truncated",
	InvalidTypeCastErr:          "invalid_type_cast",
}

func (e SQLError) String() string {
	if name, ok := sqlErrorNames[e]; ok {
		return name
	}
	return sqlErrorNames[UnknownErr]
}

// postgres SQLSTATE codes shared by lib/pq and pgx.
var pgStates = map[string]SQLError{
	"42P01": NoTableErr,
	"42703": NoColumnErr,
	"23505": DuplicateKeyErr,
	"23502": NotNullViolationErr,
	"23503": ForeignKeyViolationErr,
	"23514": CheckConstraintViolationErr,
	"22001": DataTruncatedErr,
	"42804": InvalidTypeCastErr,
	"22P02": InvalidTypeCastErr,
}

var mysqlNumbers = map[uint16]SQLError{
	1146: NoTableErr,
	1054: NoColumnErr,
	1062: DuplicateKeyErr,
	1048: NotNullViolationErr,
	1216: ForeignKeyViolationErr,
	1217: ForeignKeyViolationErr,
	1451: ForeignKeyViolationErr,
	1452: ForeignKeyViolationErr,
	3819: CheckConstraintViolationErr,
	1265: DataTruncatedErr,
	1406: DataTruncatedErr,
	1366: InvalidTypeCastErr,
}

// IsSqlError reports whether err came from the database and classifies it.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true, NoRowsErr
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return true, mysqlNumbers[mysqlErr.Number]
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return true, pgStates[pgErr.Code]
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return true, pgStates[string(pqErr.Code)]
	}

	// sqlite drivers only expose their errors as text.
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "no such table"):
		return true, NoTableErr
	case strings.Contains(s, "no such column"):
		return true, NoColumnErr
	case strings.Contains(s, "unique constraint failed"):
		return true, DuplicateKeyErr
	case strings.Contains(s, "not null constraint failed"):
		return true, NotNullViolationErr
	case strings.Contains(s, "foreign key constraint failed"):
		return true, ForeignKeyViolationErr
	case strings.Contains(s, "check constraint failed"):
		return true, CheckConstraintViolationErr
	case strings.Contains(s, "datatype mismatch"):
		return true, InvalidTypeCastErr
	}
	return false, UnknownErr
}
