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

// nicactl inspects and configures a running engine through its management
// API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nicaproject/nica/nica/mgmtapi"
	"github.com/nicaproject/nica/private/env"
)

// CommandPather returns the path to a command.
type CommandPather interface {
	CommandPath() string
}

type globalFlags struct {
	api     string
	timeout time.Duration
	format  string
	noColor bool
}

func (f *globalFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.api, "api", env.DefaultAPIAddress, "Address of the management API")
	flags.DurationVar(&f.timeout, "timeout", 5*time.Second, "Timeout of a request")
	flags.StringVar(&f.format, "format", "human", "Specify the output format (human|json|yaml)")
	flags.BoolVar(&f.noColor, "no-color", false, "disable colored output")
}

func (f *globalFlags) client() *mgmtapi.Client {
	return &mgmtapi.Client{Server: f.api}
}

func (f *globalFlags) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), f.timeout)
}

// colored reports whether human output should be colored.
func (f *globalFlags) colored(cmd *cobra.Command) bool {
	if f.noColor {
		return false
	}
	file, ok := cmd.OutOrStdout().(*os.File)
	return ok && isatty.IsTerminal(file.Fd())
}

func newRoot() *cobra.Command {
	var flags globalFlags
	cmd := &cobra.Command{
		Use:           "nicactl",
		Short:         "Inspect and configure a running NICA engine",
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}
	flags.register(cmd.PersistentFlags())
	cmd.AddCommand(
		newInfo(cmd, &flags),
		newStats(cmd, &flags),
		newRegister(cmd, &flags),
		newCredits(cmd, &flags),
	)
	return cmd
}

func main() {
	cmd := newRoot()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
