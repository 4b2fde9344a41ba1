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

package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap is a convenience type for JSON columns mapped to objects.
type JSONMap map[string]interface{}

// JSONArray is a convenience type for JSON columns mapped to arrays.
type JSONArray []JSONMap

// Value implements driver.Valuer for JSONMap.
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JSONMap.
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONMap)
		return nil
	}
	raw, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, j)
}

// Value implements driver.Valuer for JSONArray.
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JSONArray.
func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONArray, 0)
		return nil
	}
	raw, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, j)
}

// jsonBytes normalizes a driver value to raw JSON. TEXT columns come back
// as string on some drivers and []byte on others.
func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, errors.New("json column value must be []byte or string")
}
