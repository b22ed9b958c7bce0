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
	"os"

	"github.com/logrusorgru/aurora/v4"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const (
	colorsFlag   = "colors"
	noColorsFlag = "no-colors"
)

// AddColorControlFlags adds the flags forcing or disabling colors to every
// subcommand
func AddColorControlFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool(colorsFlag, false, "Force colorized output even if no terminal is attached")
	cmd.PersistentFlags().Bool(noColorsFlag, false, "Disable colorized output")
	cmd.MarkFlagsMutuallyExclusive(colorsFlag, noColorsFlag)
}

// ConfigureColor replaces aurora.DefaultColorizer depending on the flags
// and on stdout being a terminal
func ConfigureColor(cmd *cobra.Command) error {
	return configureColor(cmd, isatty.IsTerminal(os.Stdout.Fd()))
}

func configureColor(cmd *cobra.Command, isTTY bool) error {
	colorize, err := shouldColorize(cmd, isTTY)
	if err != nil {
		return err
	}

	aurora.DefaultColorizer = aurora.New(aurora.WithColors(colorize))
	return nil
}

func shouldColorize(cmd *cobra.Command, isTTY bool) (bool, error) {
	colors, err := cmd.Flags().GetBool(colorsFlag)
	if err != nil {
		return false, err
	}
	noColors, err := cmd.Flags().GetBool(noColorsFlag)
	if err != nil {
		return false, err
	}

	switch {
	case colors:
		return true, nil
	case noColors:
		return false, nil
	default:
		return isTTY, nil
	}
}
