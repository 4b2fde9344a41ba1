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

package query

import (
	"errors"
	"fmt"
)

var (
	// ErrNonUnique is returned by One when the predicate matches more than
	// one row. Zero matches are not an error; One returns nil instead.
	ErrNonUnique = errors.New("query: result is not unique")

	// ErrComposition is the root of all pre-execution composition failures:
	// unknown columns, invalid join declarations, binder shape mismatches.
	// These are detected before any request reaches the database.
	ErrComposition = errors.New("query: invalid composition")
)

func compositionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrComposition, fmt.Sprintf(format, args...))
}
