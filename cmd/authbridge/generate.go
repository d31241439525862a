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
	"os"

	"github.com/spf13/cobra"

	"github.com/tomoncle/authbridge"
	"github.com/tomoncle/authbridge/codegen"
	"github.com/tomoncle/authbridge/repository"
)

// GenerateOptions holds the flags of the generate command.
type GenerateOptions struct {
	Schema  string
	Package string
	Plural  bool
	Output  string
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Emit bun entity structs for the authentication schema",
		Long: `Emit Go source declaring one bun model per table of the schema.

Without --schema the built-in user, session, account and verification
tables are used. Use -o - to print to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "YAML schema description")
	cmd.Flags().StringVar(&opts.Package, "package", codegen.DefaultPackage, "package name of the emitted file")
	cmd.Flags().BoolVar(&opts.Plural, "plural", false, "pluralise table names")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", authbridge.DefaultSchemaPath, "output file")

	return cmd
}

func runGenerate(cmd *cobra.Command, rootOpts *RootOptions, opts *GenerateOptions) error {
	tables, err := loadTables(opts.Schema)
	if err != nil {
		return err
	}
	adapter := authbridge.New(repository.NewMemoryProvider(), authbridge.Options{
		Entities:  tables,
		DebugLogs: rootOpts.Verbose,
		Codegen:   codegen.Options{Package: opts.Package, PluralTables: opts.Plural},
	})
	output := opts.Output
	if output == "-" {
		output = ""
	}
	result, err := adapter.CreateSchema(tables, output)
	if err != nil {
		return err
	}
	if opts.Output == "-" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), result.Code)
		return err
	}
	if err := writeResult(result); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d tables to %s\n", len(tables), result.Path)
	return err
}

func writeResult(result *authbridge.SchemaResult) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !result.Overwrite {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(result.Path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", result.Path, err)
	}
	if _, err := f.WriteString(result.Code); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", result.Path, err)
	}
	return f.Close()
}
