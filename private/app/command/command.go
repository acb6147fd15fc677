// Copyright 2026 The NICA Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package command contains cobra commands shared by the NICA binaries.
package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicaproject/nica/private/config"
)

// Pather returns the path to a command.
type Pather interface {
	CommandPath() string
}

// NewSample returns a command that prints a sample configuration of cfg.
func NewSample(pather Pather, cfg config.Sampler) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Display a sample configuration file",
		Example: fmt.Sprintf("  %[1]s sample > nica.toml\n"+
			"  %[1]s sample --id nica-2", pather.CommandPath()),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Sample(cmd.OutOrStdout(), nil, config.CtxMap{config.ID: id})
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "nica-1", "the instance id written to the sample")
	return cmd
}
