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

package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML document layout of a schema description.
type File struct {
	Tables []Table `yaml:"tables"`
}

// Parse decodes a YAML schema description and validates it.
func Parse(data []byte) ([]Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	for i := range f.Tables {
		if f.Tables[i].Order == 0 {
			f.Tables[i].Order = i + 1
		}
	}
	if err := Validate(f.Tables); err != nil {
		return nil, err
	}
	return f.Tables, nil
}

// Load reads a YAML schema description from disk.
func Load(path string) ([]Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(data)
}

// Marshal renders tables back to the YAML layout accepted by Parse.
func Marshal(tables []Table) ([]byte, error) {
	return yaml.Marshal(&File{Tables: tables})
}
