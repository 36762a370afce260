package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmuller/camdeck/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Show the config file location, create a default one, or regenerate its JSON schema.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long: `Write a config.toml populated with defaults to the config directory.

An existing config file is never modified.`,
	RunE: runConfigInit,
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Regenerate the JSON schema for the config file",
	Long:  `Write config.schema.json next to the config file so editors can validate and complete it.`,
	RunE:  runConfigSchema,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSchemaCmd)
}

func runConfigPath(_ *cobra.Command, _ []string) error {
	file, err := config.GetConfigFile()
	if err != nil {
		fmt.Println(renderer.RenderError(err))
		return nil
	}

	_, statErr := os.Stat(file)
	fmt.Println(renderer.RenderConfigPath(file, statErr == nil))
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	file, err := config.WriteDefaultConfigFile()
	if errors.Is(err, os.ErrExist) {
		fmt.Println(renderer.RenderExists(file))
		return nil
	}
	if err != nil {
		fmt.Println(renderer.RenderError(err))
		return nil
	}
	fmt.Println(renderer.RenderCreated(file))

	schemaFile, err := config.GenerateSchemaFile()
	if err != nil {
		fmt.Println(renderer.RenderError(err))
		return nil
	}
	fmt.Println(renderer.RenderCreated(schemaFile))
	return nil
}

func runConfigSchema(_ *cobra.Command, _ []string) error {
	schemaFile, err := config.GenerateSchemaFile()
	if err != nil {
		fmt.Println(renderer.RenderError(err))
		return nil
	}
	fmt.Println(renderer.RenderCreated(schemaFile))
	return nil
}
