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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/nicaproject/nica/nica"
	"github.com/nicaproject/nica/nica/ikernel"
	"github.com/nicaproject/nica/nica/mgmtapi"
	"github.com/nicaproject/nica/pkg/private/serrors"
)

func newInfo(pather CommandPather, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the installed ikernels and the register components",
		Example: fmt.Sprintf(`  %[1]s info
  %[1]s info --api 10.0.0.1:30480 --format json
  %[1]s info --format yaml`, pather.CommandPath()),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(flags.format); err != nil {
				return err
			}
			cmd.SilenceUsage = true
			ctx, cancel := flags.context()
			defer cancel()
			info, err := flags.client().Info(ctx)
			if err != nil {
				return serrors.Wrap("fetching info", err)
			}
			if flags.format != "human" {
				return writeStructured(cmd.OutOrStdout(), flags.format, info)
			}
			humanInfo(cmd.OutOrStdout(), info, flags.colored(cmd))
			return nil
		},
	}
}

func newStats(pather CommandPather, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the engine statistics",
		Example: fmt.Sprintf(`  %[1]s stats
  %[1]s stats --format json`, pather.CommandPath()),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(flags.format); err != nil {
				return err
			}
			cmd.SilenceUsage = true
			ctx, cancel := flags.context()
			defer cancel()
			stats, err := flags.client().Stats(ctx)
			if err != nil {
				return serrors.Wrap("fetching stats", err)
			}
			if flags.format != "human" {
				return writeStructured(cmd.OutOrStdout(), flags.format, stats)
			}
			humanStats(cmd.OutOrStdout(), stats, flags.colored(cmd))
			return nil
		},
	}
}

func checkFormat(format string) error {
	switch format {
	case "human", "json", "yaml":
		return nil
	default:
		return serrors.New("output format not supported", "format", format)
	}
}

// writeStructured writes v as json or yaml. The yaml keys are the json keys.
func writeStructured(w io.Writer, format string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if format == "json" {
		var out bytes.Buffer
		if err := json.Indent(&out, raw, "", "  "); err != nil {
			return err
		}
		out.WriteByte('\n')
		_, err := out.WriteTo(w)
		return err
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return err
	}
	return yaml.NewEncoder(w).Encode(generic)
}

type palette struct {
	header *color.Color
	good   *color.Color
	bad    *color.Color
}

func newPalette(colored bool) palette {
	noColor := color.New()
	p := palette{header: noColor, good: noColor, bad: noColor}
	if colored {
		p.header = color.New(color.FgHiCyan, color.Bold)
		p.good = color.New(color.FgGreen)
		p.bad = color.New(color.FgRed)
		// The palette is explicit, the global detection must not override it.
		for _, c := range []*color.Color{p.header, p.good, p.bad} {
			c.EnableColor()
		}
	}
	return p
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

func humanInfo(w io.Writer, info mgmtapi.Info, colored bool) {
	p := newPalette(colored)
	p.header.Fprintf(w, "Engine %s\n", info.ID)
	fmt.Fprintf(w, "Directions: %s\n", strings.Join(info.Directions, " "))
	fmt.Fprintf(w, "Components: %s\n\n", strings.Join(info.Components, " "))

	p.header.Fprintf(w, "%d Ikernels:\n", len(info.Ikernels))
	table := newTable(w, "INDEX", "KIND", "UUID")
	for _, ik := range info.Ikernels {
		table.Append([]string{strconv.Itoa(ik.Index), ik.Kind, ik.UUID.String()})
	}
	table.Render()
}

func humanStats(w io.Writer, stats nica.Stats, colored bool) {
	p := newPalette(colored)
	fmt.Fprintf(w, "Ticks: %d\n", stats.Ticks)
	for _, dir := range nica.Directions {
		ps, ok := stats.Pipelines[dir.String()]
		if !ok {
			continue
		}
		p.header.Fprintf(w, "\nPipeline %s\n", dir)
		humanSteering(w, ps.Steering)
		fmt.Fprintf(w, "Custom ring packets: %d, egress queued words: %d\n\n",
			ps.RingPackets, ps.EgressQueued)

		table := newTable(w, "IKERNEL", "PASS", "DROP", "GENERATE", "BUILD ERRORS")
		for i, ik := range ps.Ikernels {
			row := []string{strconv.Itoa(i)}
			for a := 0; a < ikernel.NumActions; a++ {
				row = append(row, strconv.FormatUint(ik.Actions[a], 10))
			}
			row = append(row, errorCount(p, ik.BuildErrors))
			table.Append(row)
		}
		table.Render()
		fmt.Fprintln(w)

		state := p.good.Sprint("busy")
		if ps.Arbiter.Idle {
			state = "idle"
		}
		fmt.Fprintf(w, "Arbiter: %s, output full ticks: %d\n", state, ps.Arbiter.OutFull)
		table = newTable(w, "PORT", "PACKETS", "WORDS", "TOKENS", "NO TOKENS",
			"NOT EMPTY", "IDLE EVICTIONS", "QUOTA EVICTIONS")
		for i, port := range ps.Arbiter.Ports {
			tokens := strconv.Itoa(port.Tokens)
			if port.Tokens < 0 {
				tokens = p.bad.Sprint(tokens)
			}
			table.Append([]string{
				strconv.Itoa(i),
				strconv.FormatUint(port.Packets, 10),
				strconv.FormatUint(port.Words, 10),
				tokens,
				strconv.FormatUint(port.NoTokens, 10),
				strconv.FormatUint(port.NotEmpty, 10),
				strconv.FormatUint(port.IdleEvictions, 10),
				strconv.FormatUint(port.QuotaEvictions, 10),
			})
		}
		table.Render()
	}
	humanCredits(w, p, stats)
}

func humanSteering(w io.Writer, s nica.SteeringStats) {
	table := newTable(w, "STEERING", "PACKETS")
	rows := []struct {
		name  string
		count uint64
	}{
		{"passthrough (disabled)", s.PassthroughDisabled},
		{"passthrough (not ipv4)", s.PassthroughNotIPv4},
		{"passthrough (bad length)", s.PassthroughBadLength},
		{"passthrough (not udp)", s.PassthroughNotUDP},
		{"flow table passthrough", s.ActionPassthrough},
		{"flow table drop", s.ActionDrop},
		{"flow table ikernel", s.ActionIkernel},
	}
	for _, r := range rows {
		table.Append([]string{r.name, strconv.FormatUint(r.count, 10)})
	}
	table.Render()
}

func humanCredits(w io.Writer, p palette, stats nica.Stats) {
	if len(stats.Credits) == 0 {
		return
	}
	p.header.Fprintln(w, "\nCredits")
	table := newTable(w, "IKERNEL", "RING", "MSN", "MAX MSN", "LEFT")
	ikernels := make([]string, 0, len(stats.Credits))
	for ik := range stats.Credits {
		ikernels = append(ikernels, ik)
	}
	sort.Slice(ikernels, func(i, j int) bool {
		a, _ := strconv.Atoi(ikernels[i])
		b, _ := strconv.Atoi(ikernels[j])
		return a < b
	})
	for _, ik := range ikernels {
		windows := stats.Credits[ik]
		rings := make([]int, 0, len(windows))
		for ring := range windows {
			rings = append(rings, ring)
		}
		sort.Ints(rings)
		for _, ring := range rings {
			win := windows[ring]
			left := strconv.Itoa(int(win.MaxMSN - win.MSN))
			if win.MaxMSN == win.MSN {
				left = p.bad.Sprint(left)
			}
			table.Append([]string{
				ik,
				strconv.Itoa(ring),
				strconv.Itoa(int(win.MSN)),
				strconv.Itoa(int(win.MaxMSN)),
				left,
			})
		}
	}
	table.Render()
}

func errorCount(p palette, n uint64) string {
	s := strconv.FormatUint(n, 10)
	if n > 0 {
		return p.bad.Sprint(s)
	}
	return s
}
