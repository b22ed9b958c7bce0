/*
Copyright The Kubeship Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

/*
Package configparser contains the code to read configuration values from
the environment and from a ConfigMap data map into a struct.

Every field to be read has to be tagged with the name of the environment
variable, i.e.:

	type Data struct {
		PullSecretPrefix string `json:"pullSecretPrefix" env:"PULL_SECRET_PREFIX"`
	}

Values found in the data map take precedence over the environment. A value
that cannot be parsed is replaced by the one in the defaults struct.
*/
package configparser

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/cloudnative-pg/machinery/pkg/log"
)

var configparserLog = log.WithName("configparser")

// ReadConfigMap reads the configuration from the environment and the passed in data map.
// Config and defaults are supposed to be pointers to structs of the same type
func ReadConfigMap(target interface{}, defaults interface{}, data map[string]string) {
	ReadConfigMapWithSource(target, defaults, data, OsEnvironment{})
}

// ReadConfigMapWithSource is ReadConfigMap reading the environment from
// the passed source
func ReadConfigMapWithSource(
	target interface{},
	defaults interface{},
	data map[string]string,
	env EnvironmentSource,
) {
	ensurePointerToCompatibleStruct("target", target, "default", defaults)

	count := reflect.TypeOf(defaults).Elem().NumField()
	for i := 0; i < count; i++ {
		field := reflect.TypeOf(defaults).Elem().Field(i)
		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		// Initialize value with default
		var value string
		defaultValue := reflect.ValueOf(defaults).Elem().FieldByName(field.Name)
		targetValue := reflect.ValueOf(target).Elem().FieldByName(field.Name)
		targetValue.Set(defaultValue)

		// If the key is present in the environment, use its value
		if envValue := env.Getenv(envName); envValue != "" {
			value = envValue
		}
		// If the key is present in the passed data, use its value
		if mapValue, ok := data[envName]; ok {
			value = mapValue
		}
		if value == "" {
			continue
		}

		switch t := field.Type; t.Kind() {
		case reflect.Bool:
			boolValue, err := strconv.ParseBool(value)
			if err != nil {
				configparserLog.Info(
					"Skipping invalid boolean value parsing configuration",
					"field", field.Name, "value", value)
				continue
			}
			targetValue.SetBool(boolValue)
		case reflect.Int:
			intValue, err := strconv.Atoi(value)
			if err != nil {
				configparserLog.Info(
					"Skipping invalid integer value parsing configuration",
					"field", field.Name, "value", value)
				continue
			}
			targetValue.SetInt(int64(intValue))
		case reflect.String:
			targetValue.SetString(value)
		case reflect.Slice:
			if t.Elem().Kind() != reflect.String {
				configparserLog.Info(
					"Skipping invalid slice type parsing configuration",
					"field", field.Name, "value", value)
				continue
			}
			targetValue.Set(reflect.ValueOf(splitAndTrim(value)))
		default:
			configparserLog.Info(
				"Skipping unsupported field type parsing configuration",
				"field", field.Name, "kind", t.Kind().String())
		}
	}
}

func ensurePointerToCompatibleStruct(
	aName string, a interface{},
	bName string, b interface{},
) {
	if reflect.TypeOf(a).Kind() != reflect.Ptr {
		panic(aName + " is not a pointer")
	}

	if reflect.TypeOf(a).Elem().Kind() != reflect.Struct {
		panic(aName + " is not a pointer to struct")
	}

	if reflect.TypeOf(b).Kind() != reflect.Ptr {
		panic(bName + " is not a pointer")
	}

	if reflect.TypeOf(a).Elem() != reflect.TypeOf(b).Elem() {
		panic(aName + " and " + bName + " are not compatible")
	}
}

// splitAndTrim slices s into all substrings separated by a comma and
// returns a slice of the substrings without leading and trailing spaces
func splitAndTrim(commaSeparatedList string) []string {
	list := strings.Split(commaSeparatedList, ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}
	return list
}
