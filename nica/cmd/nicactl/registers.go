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

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nicaproject/nica/nica/mgmtapi"
	"github.com/nicaproject/nica/pkg/private/serrors"
)

func newRegister(pather CommandPather, flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "register",
		Aliases: []string{"reg"},
		Short:   "Access the gateway registers of an engine component",
		Long: `'register' reads and writes the gateway registers of a component.

Components are named as listed by 'info': steering, flowtable, arbiter,
customring and ikernel<index>. Every direction (n2h or h2n) has its own
register blocks, except for the ikernels whose blocks are shared.`,
	}
	cmd.AddCommand(
		newRegisterRead(cmd, flags),
		newRegisterWrite(cmd, flags),
	)
	return cmd
}

func newRegisterRead(pather CommandPather, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "read <direction> <component> <address>",
		Short: "Read a register",
		Example: fmt.Sprintf(`  %[1]s read n2h steering 0
  %[1]s read h2n arbiter 0x11`, pather.CommandPath()),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[2])
			if err != nil {
				return err
			}
			if err := checkFormat(flags.format); err != nil {
				return err
			}
			cmd.SilenceUsage = true
			ctx, cancel := flags.context()
			defer cancel()
			reg, err := flags.client().ReadRegister(ctx, args[0], args[1], addr)
			if err != nil {
				return err
			}
			return printRegister(cmd.OutOrStdout(), flags.format, reg)
		},
	}
}

func newRegisterWrite(pather CommandPather, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "write <direction> <component> <address> <value>",
		Short: "Write a register",
		Example: fmt.Sprintf(`  %[1]s write n2h steering 0 0
  %[1]s write n2h flowtable 0x13 11211`, pather.CommandPath()),
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[2])
			if err != nil {
				return err
			}
			value, err := strconv.ParseInt(args[3], 0, 32)
			if err != nil {
				return serrors.Wrap("parsing value", err, "value", args[3])
			}
			if err := checkFormat(flags.format); err != nil {
				return err
			}
			cmd.SilenceUsage = true
			ctx, cancel := flags.context()
			defer cancel()
			reg, err := flags.client().WriteRegister(ctx, args[0], args[1], addr,
				int32(value))
			if err != nil {
				return err
			}
			return printRegister(cmd.OutOrStdout(), flags.format, reg)
		},
	}
}

func parseAddress(s string) (uint32, error) {
	addr, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, serrors.Wrap("parsing address", err, "address", s)
	}
	return uint32(addr), nil
}

func printRegister(w io.Writer, format string, reg mgmtapi.Register) error {
	if format != "human" {
		return writeStructured(w, format, reg)
	}
	_, err := fmt.Fprintf(w, "%s/%s[0x%x] = %d (0x%x)\n", reg.Direction, reg.Component,
		reg.Address, reg.Value, uint32(reg.Value))
	return err
}

func newCredits(pather CommandPather, flags *globalFlags) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "credits <ikernel> <ring> <max-msn>",
		Short: "Grant host credits to a custom ring of an ikernel",
		Long: `'credits' sets the highest message sequence number an ikernel may send on a
custom ring towards the host. With --reset the message sequence number of the
ring restarts at zero.`,
		Example: fmt.Sprintf(`  %[1]s credits 0 1 64
  %[1]s credits 0 1 16 --reset`, pather.CommandPath()),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return serrors.Wrap("parsing ikernel index", err, "index", args[0])
			}
			ring, err := strconv.ParseUint(args[1], 0, 8)
			if err != nil {
				return serrors.Wrap("parsing ring", err, "ring", args[1])
			}
			maxMSN, err := strconv.ParseUint(args[2], 0, 16)
			if err != nil {
				return serrors.Wrap("parsing max msn", err, "max_msn", args[2])
			}
			if err := checkFormat(flags.format); err != nil {
				return err
			}
			cmd.SilenceUsage = true
			ctx, cancel := flags.context()
			defer cancel()
			credits := mgmtapi.Credits{
				Ring:   uint8(ring),
				MaxMSN: uint16(maxMSN),
				Reset:  reset,
			}
			if err := flags.client().SetCredits(ctx, index, credits); err != nil {
				return err
			}
			if flags.format != "human" {
				return writeStructured(cmd.OutOrStdout(), flags.format, credits)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ikernel %d ring %d: max msn %d\n",
				index, credits.Ring, credits.MaxMSN)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Restart the message sequence number")
	return cmd
}
