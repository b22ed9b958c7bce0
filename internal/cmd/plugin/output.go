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

package plugin

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"
)

// OutputFormat is the format of the output of a subcommand
type OutputFormat string

const (
	// OutputFormatText means human-readable output
	OutputFormatText = "text"

	// OutputFormatJSON means machine-readable JSON output
	OutputFormatJSON = "json"

	// OutputFormatYAML means machine-readable YAML output
	OutputFormatYAML = "yaml"
)

// ParseOutputFormat checks the value of an --output flag
func ParseOutputFormat(value string) (OutputFormat, error) {
	switch value {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return OutputFormat(value), nil
	default:
		return "", fmt.Errorf("unknown output format %q, use one of text|json|yaml", value)
	}
}

// String implements pflag.Value
func (o *OutputFormat) String() string {
	return string(*o)
}

// Set implements pflag.Value, refusing unknown formats
func (o *OutputFormat) Set(value string) error {
	format, err := ParseOutputFormat(value)
	if err != nil {
		return err
	}
	*o = format
	return nil
}

// Type implements pflag.Value
func (o *OutputFormat) Type() string {
	return "format"
}

// AddOutputFlag adds the --output flag to a subcommand
func AddOutputFlag(cmd *cobra.Command) {
	format := OutputFormat(OutputFormatText)
	cmd.Flags().VarP(&format, "output", "o", "Output format. One of text|json|yaml")
}

// GetOutputFormat reads the value of the --output flag
func GetOutputFormat(flags *pflag.FlagSet) OutputFormat {
	flag := flags.Lookup("output")
	if flag == nil {
		return OutputFormatText
	}
	return OutputFormat(flag.Value.String())
}

// Print writes an object to the passed writer in a machine-readable way
func Print(o any, format OutputFormat, writer io.Writer) error {
	var data []byte
	var err error

	switch format {
	case OutputFormatJSON:
		data, err = json.MarshalIndent(o, "", "  ")
		// json.MarshalIndent doesn't add the final newline
		data = append(data, '\n')
	case OutputFormatYAML:
		data, err = yaml.Marshal(o)
	default:
		return fmt.Errorf("cannot print in %q format", format)
	}
	if err != nil {
		return err
	}

	_, err = writer.Write(data)
	return err
}
