// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import "github.com/invopop/jsonschema"

// SchemaID identifies the generated schema.
const SchemaID = "https://github.com/kadirpekel/dossier/schemas/config.json"

// Schema returns the JSON Schema of Config. Property names follow the yaml
// tags and definitions are inlined.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
	}
	schema := reflector.Reflect(&Config{})
	schema.ID = SchemaID
	schema.Title = "Dossier Configuration Schema"
	schema.Description = "Configuration of the dossier research service"
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.Examples = []any{
		map[string]any{
			"llm": map[string]any{
				"model":   "claude-sonnet-4-20250514",
				"api_key": "${ANTHROPIC_API_KEY}",
			},
			"database": map[string]any{
				"driver":   "sqlite",
				"database": "dossier.db",
			},
			"hitl": map[string]any{"timeout": "5m"},
		},
	}
	return schema
}
