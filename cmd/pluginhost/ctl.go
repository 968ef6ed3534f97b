// ctl.go: Control a running host over gRPC
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"encoding/json"
	"time"

	pluginhost "github.com/agilira/go-pluginhost"
	"github.com/spf13/cobra"
)

const ctlTimeout = 30 * time.Second

func newCtlCommand(a *app) *cobra.Command {
	ctl := &cobra.Command{
		Use:   "ctl",
		Short: "Send a command to a running host",
	}

	call := func(fn func(context.Context, *pluginhost.ControlClient, []string) (any, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := a.hostConfig()
			if err != nil {
				return err
			}
			client, err := pluginhost.DialControl(a.controlAddress(cfg))
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), ctlTimeout)
			defer cancel()
			reply, err := fn(ctx, client, args)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reply)
		}
	}

	ctl.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the plugins known to the host",
			Args:  cobra.NoArgs,
			RunE: call(func(ctx context.Context, c *pluginhost.ControlClient, _ []string) (any, error) {
				return c.List(ctx)
			}),
		},
		&cobra.Command{
			Use:   "start NAME [ARGS...]",
			Short: "Start the plugin registered as NAME",
			Args:  cobra.MinimumNArgs(1),
			RunE: call(func(ctx context.Context, c *pluginhost.ControlClient, args []string) (any, error) {
				return c.Start(ctx, args[0], args[1:]...)
			}),
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the active plugin",
			Args:  cobra.NoArgs,
			RunE: call(func(ctx context.Context, c *pluginhost.ControlClient, _ []string) (any, error) {
				return c.Stop(ctx)
			}),
		},
		&cobra.Command{
			Use:   "restart",
			Short: "Restart the active plugin with its original arguments",
			Args:  cobra.NoArgs,
			RunE: call(func(ctx context.Context, c *pluginhost.ControlClient, _ []string) (any, error) {
				return c.Restart(ctx)
			}),
		},
		&cobra.Command{
			Use:   "pause",
			Short: "Toggle pause on the active script",
			Args:  cobra.NoArgs,
			RunE: call(func(ctx context.Context, c *pluginhost.ControlClient, _ []string) (any, error) {
				return c.Pause(ctx)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the active session",
			Args:  cobra.NoArgs,
			RunE: call(func(ctx context.Context, c *pluginhost.ControlClient, _ []string) (any, error) {
				return c.Status(ctx)
			}),
		},
	)
	return ctl
}
