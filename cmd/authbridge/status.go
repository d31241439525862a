/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConnectOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report connection health and whether the schema is migrated",
		Long: `Connect to the database described by --config without changing it and
print the connection health, the pool statistics and, per table, whether it
exists with every column. Exits with an error when the schema is not ready.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, rootOpts, opts)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, rootOpts *RootOptions, opts *ConnectOptions) error {
	factory, cfg, err := openFactory(rootOpts, opts)
	if err != nil {
		return err
	}
	defer func() { _ = factory.Close() }()
	if err := factory.InitializeDatabase(cmd.Context(), false); err != nil {
		return err
	}

	schemaStatus, err := factory.GetSchemaStatus(cmd.Context())
	if err != nil {
		return err
	}
	err = writeYAML(cmd.OutOrStdout(), map[string]any{
		"health": factory.GetHealthStatus(cmd.Context()),
		"stats":  factory.GetStats(),
		"schema": schemaStatus,
	})
	if err != nil {
		return err
	}
	if !schemaStatus.Ready() {
		return fmt.Errorf("schema %s is not ready on %s database %s, run migrate", schemaStatus.Version, cfg.Connection.Type, cfg.Connection.DBName)
	}
	return nil
}
