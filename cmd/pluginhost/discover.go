// discover.go: List the plugins found in the plugins directory
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	pluginhost "github.com/agilira/go-pluginhost"
	"github.com/spf13/cobra"
)

func newDiscoverCommand(a *app) *cobra.Command {
	var asJSON, showHidden bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan the plugins directory and print the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.hostConfig()
			if err != nil {
				return err
			}
			discoverer := pluginhost.NewDiscoverer(pluginhost.DefaultHostTypes(), a.logger)
			catalog := discoverer.Discover(cmd.Context(), a.pluginsDir(cfg))

			var visible []pluginhost.CatalogEntry
			for _, entry := range catalog {
				if entry.Descriptor.Hidden && !showHidden {
					continue
				}
				visible = append(visible, entry)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(visible)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTYPE\tARCHIVE\tTAGS")
			for _, entry := range visible {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", entry.Descriptor.Name, entry.TypeName(), entry.Archive, strings.Join(entry.Descriptor.Tags, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")
	cmd.Flags().BoolVar(&showHidden, "all", false, "include hidden plugins")
	return cmd
}
