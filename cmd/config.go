package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

func handleConfigShow(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if cfg == nil {
		loader := voice.NewConfigLoader()
		fmt.Println("No configuration file found.")
		fmt.Println("\nSearched locations:")
		fmt.Println("  - .voiceclone/config.json (project)")
		fmt.Printf("  - %s (global)\n", loader.GlobalPath())
		fmt.Println("\nRun 'voiceclone config init' to create one.")
		return nil
	}

	output, err := json.MarshalIndent(cfg.MaskSecrets(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format config: %w", err)
	}

	fmt.Println("Current configuration (secrets masked):")
	fmt.Println(string(output))
	return nil
}

func handleConfigValidate(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg == nil {
		fmt.Println("No configuration file found.")
		return nil
	}

	problems := cfg.Validate()
	if len(problems) == 0 {
		color.Green("✅ Configuration is valid.")
		return nil
	}

	color.Red("❌ Configuration has errors:")
	for _, p := range problems {
		fmt.Printf("  - %s\n", p)
	}
	return voice.Invalid(fmt.Sprintf("configuration has %d error(s)", len(problems)), nil)
}

func handleConfigInit(ctx context.Context, c *cli.Command) error {
	loader := voice.NewConfigLoader()
	configPath := loader.ProjectPath(".")
	if c.Bool("global") {
		configPath = loader.GlobalPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// 0600 since the file may hold API keys
	if err := os.WriteFile(configPath, []byte(voice.GenerateExampleConfig()), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	color.Green("✅ Created configuration: %s", configPath)
	fmt.Println("\nEdit the file to configure your preferred speech providers.")
	fmt.Println("Use ${ENV_VAR} syntax for sensitive values like API keys.")
	return nil
}
