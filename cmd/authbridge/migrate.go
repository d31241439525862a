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
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tomoncle/authbridge/database"
)

// ConnectOptions holds the flags shared by commands that open the database.
type ConnectOptions struct {
	Config  string
	Schema  string
	EnvFile string
}

func (o *ConnectOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Config, "config", "", "YAML database config")
	cmd.Flags().StringVar(&o.Schema, "schema", "", "YAML schema description, overrides the config")
	cmd.Flags().StringVar(&o.EnvFile, "env-file", ".env", "dotenv file loaded before connecting")
	_ = cmd.MarkFlagRequired("config")
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConnectOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the authentication tables in the configured database",
		Long: `Connect to the database described by --config and create every table
of the schema that does not exist yet. DB_* environment variables, also
read from --env-file, override the connection settings. With --verbose the
connection health and pool statistics are printed afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, rootOpts, opts)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

// openFactory loads the env file and config, then builds a factory for them.
// The caller connects and closes it.
func openFactory(rootOpts *RootOptions, opts *ConnectOptions) (*database.BaseDatabaseFactory, *database.Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("load %s: %w", opts.EnvFile, err)
		}
	}
	cfg, err := database.LoadConfig(opts.Config)
	if err != nil {
		return nil, nil, err
	}
	if opts.Schema != "" {
		cfg.Migrate.SchemaFile = opts.Schema
	}
	if cfg.Migrate.SchemaFile == "" {
		tables, err := loadTables("")
		if err != nil {
			return nil, nil, err
		}
		database.RegisterTables(tables...)
	}
	if rootOpts.Verbose {
		database.GetLogger().SetLevel(database.LogLevelDebug)
	}

	factory := database.NewDatabaseFactory()
	if _, err := factory.CreateFromConfig(cfg); err != nil {
		return nil, nil, err
	}
	return factory, cfg, nil
}

func runMigrate(cmd *cobra.Command, rootOpts *RootOptions, opts *ConnectOptions) error {
	factory, cfg, err := openFactory(rootOpts, opts)
	if err != nil {
		return err
	}
	defer func() { _ = factory.Close() }()
	if err := factory.InitializeDatabase(cmd.Context(), true); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "schema ready on %s database %s\n", cfg.Connection.Type, cfg.Connection.DBName); err != nil {
		return err
	}
	if !rootOpts.Verbose {
		return nil
	}
	return writeYAML(out, map[string]any{
		"health": factory.GetHealthStatus(cmd.Context()),
		"stats":  factory.GetStats(),
	})
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
