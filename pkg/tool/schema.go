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

package tool

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

func schemaFor[T any]() map[string]any {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	data, err := json.Marshal(reflector.Reflect(new(T)))
	if err != nil {
		// Argument types are static; a failure here is a programming error.
		panic(fmt.Sprintf("tool: schema for %T: %v", *new(T), err))
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		panic(fmt.Sprintf("tool: schema for %T: %v", *new(T), err))
	}

	result := map[string]any{
		"type":       "object",
		"properties": raw["properties"],
	}
	if required, ok := raw["required"]; ok {
		result["required"] = required
	}
	return result
}

// Decode converts raw model input into the typed argument struct T and
// checks the fields tagged as required.
func Decode[T any](input map[string]any) (T, error) {
	var args T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &args,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return args, err
	}
	if err := decoder.Decode(input); err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	if missing := missingRequired(args); len(missing) > 0 {
		return args, fmt.Errorf("missing required argument(s): %s", strings.Join(missing, ", "))
	}
	return args, nil
}

func missingRequired(args any) []string {
	v := reflect.ValueOf(args)
	t := v.Type()
	var missing []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !strings.Contains(field.Tag.Get("jsonschema"), "required") {
			continue
		}
		if v.Field(i).IsZero() {
			missing = append(missing, field.Tag.Get("mapstructure"))
		}
	}
	return missing
}
