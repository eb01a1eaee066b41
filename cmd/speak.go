package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

func handleSpeak(ctx context.Context, c *cli.Command) error {
	text := strings.Join(c.Args().Slice(), " ")
	if path := c.String("text-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		text = string(data)
	}

	e, err := newEnv(ctx, c)
	if err != nil {
		return err
	}
	defer e.Close()

	req := voice.Request{
		Text:       text,
		Mode:       voice.Mode(c.String("mode")),
		VoiceRef:   c.String("voice-ref"),
		Voice:      c.String("voice"),
		Provider:   c.String("provider"),
		Format:     voice.AudioFormat(c.String("format")),
		Credential: voice.Credential(c.String("api-key")),
	}

	result, err := e.coord.Synthesize(ctx, req)
	if err != nil {
		return err
	}

	output := c.String("output")
	if output == "" {
		output = voice.DefaultOutputFile(result.Format)
	}
	if err := os.WriteFile(output, result.Audio, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	label := "stock voice"
	if result.Mode == voice.ModeCloned {
		label = "cloned voice " + result.VoiceRef
	}
	color.Green("✅ Speech generated with %s via %s", label, result.Provider)
	fmt.Printf("  Output: %s (%d bytes, %s)\n", output, len(result.Audio), result.Format)
	return nil
}

func handleVoices(ctx context.Context, c *cli.Command) error {
	e, err := newEnv(ctx, c)
	if err != nil {
		return err
	}
	defer e.Close()

	name := e.cfg.GetEffectiveProvider(c.String("provider"))
	lister, ok := e.providers.Lister(name)
	if !ok {
		return voice.Invalid(fmt.Sprintf("provider %q cannot list voices (available: %s)", name, strings.Join(e.providers.Names(), ", ")), nil)
	}

	cred := voice.Credential(c.String("api-key"))
	if cred == "" {
		cred = e.creds[name]
	}
	voices, err := lister.ListVoices(ctx, cred)
	if err != nil {
		return err
	}

	color.Cyan("%s voices (%d)", name, len(voices))
	for _, v := range voices {
		line := fmt.Sprintf("  %-28s %-24s %s", v.ID, v.Name, v.Language)
		if v.Gender != "" {
			line += " " + v.Gender
		}
		fmt.Println(line)
	}
	return nil
}
