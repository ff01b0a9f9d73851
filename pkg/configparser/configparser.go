/*
Copyright The Postgres User Controller Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package configparser contains the code required to fill a Go structure
// representing the configuration information, from several sources such
// as environment variables and data maps
package configparser

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/kubesql/postgres-user-controller/pkg/management/log"
)

// ReadConfigMap reads the configuration from the environment and the
// passed-in data map. Each field of the target structure tagged with
// `env:"NAME"` is filled from, in order of decreasing precedence: the
// NAME environment variable, the NAME key of the data map, the value
// carried by the defaults structure.
func ReadConfigMap(target, defaults interface{}, data map[string]string) {
	readConfigMap(target, defaults, data, OsEnvironment{})
}

func readConfigMap(target, defaults interface{}, data map[string]string, env EnvironmentSource) {
	ensurePointerToStruct("target", target)
	ensurePointerToStruct("defaults", defaults)

	count := reflect.TypeOf(defaults).Elem().NumField()
	for fieldIndex := 0; fieldIndex < count; fieldIndex++ {
		field := reflect.TypeOf(defaults).Elem().Field(fieldIndex)
		envName := field.Tag.Get("env")

		// Fields without env tag are skipped
		if envName == "" {
			continue
		}

		var value string
		if data != nil {
			value = data[envName]
		}

		// The environment takes precedence over the data map
		if envValue := env.Getenv(envName); envValue != "" {
			value = envValue
		}

		targetField := reflect.ValueOf(target).Elem().Field(fieldIndex)
		defaultField := reflect.ValueOf(defaults).Elem().Field(fieldIndex)

		if value == "" {
			targetField.Set(defaultField)
			continue
		}

		switch field.Type.Kind() {
		case reflect.String:
			targetField.SetString(value)

		case reflect.Slice:
			targetField.Set(reflect.ValueOf(splitAndTrim(value)))

		case reflect.Int:
			intValue, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				log.Info("Invalid integer value, applying default",
					"field", field.Name, "variable", envName, "value", value)
				targetField.Set(defaultField)
				continue
			}
			targetField.SetInt(intValue)

		case reflect.Float64:
			floatValue, err := strconv.ParseFloat(value, 64)
			if err != nil {
				log.Info("Invalid float value, applying default",
					"field", field.Name, "variable", envName, "value", value)
				targetField.Set(defaultField)
				continue
			}
			targetField.SetFloat(floatValue)

		case reflect.Bool:
			boolValue, err := strconv.ParseBool(value)
			if err != nil {
				log.Info("Invalid boolean value, applying default",
					"field", field.Name, "variable", envName, "value", value)
				targetField.Set(defaultField)
				continue
			}
			targetField.SetBool(boolValue)

		default:
			log.Info("Skipping unsupported field type",
				"field", field.Name, "kind", field.Type.Kind().String())
		}
	}
}

func ensurePointerToStruct(name string, data interface{}) {
	errMsg := fmt.Sprintf("%v argument must be a pointer to a struct", name)

	dataType := reflect.TypeOf(data)
	if dataType.Kind() != reflect.Ptr {
		panic(errMsg)
	}
	if dataType.Elem().Kind() != reflect.Struct {
		panic(errMsg)
	}
}

// splitAndTrim slices a comma-separated string, trimming every
// element from spaces
func splitAndTrim(commaSeparatedList string) []string {
	list := strings.Split(commaSeparatedList, ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}
	return list
}
