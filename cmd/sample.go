package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/ursnani/Voice-Cloning/internal/voice"
	"github.com/ursnani/Voice-Cloning/internal/voice/store"
)

func handleSampleSave(ctx context.Context, c *cli.Command) error {
	if c.NArg() != 1 {
		return voice.Invalid("usage: voiceclone sample save <audio-file>", nil)
	}
	path := c.Args().First()

	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	st, err := sampleStore(ctx, c)
	if err != nil {
		return err
	}

	meta, err := st.Save(ctx, audio, voice.Format{
		Encoding:   voice.ParseEncoding(filepath.Ext(path)),
		SampleRate: int(c.Int("sample-rate")),
		Channels:   int(c.Int("channels")),
	})
	if err != nil {
		return err
	}

	color.Green("✅ Saved voice sample %s", meta.ID)
	printMetadata(meta.Metadata)
	return nil
}

func handleSampleList(ctx context.Context, c *cli.Command) error {
	st, err := sampleStore(ctx, c)
	if err != nil {
		return err
	}

	samples, err := store.Collect(st.List(ctx))
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Println("No voice samples saved yet.")
		fmt.Println("\nRun 'voiceclone sample save <audio-file>' to add one.")
		return nil
	}

	color.Cyan("%-38s %-6s %8s %10s  %s", "ID", "FORMAT", "SECONDS", "BYTES", "CREATED")
	for _, m := range samples {
		fmt.Printf("%-38s %-6s %8.1f %10d  %s\n",
			m.ID, m.Format.Encoding, m.Format.Duration.Seconds(), m.Size, m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func handleSampleShow(ctx context.Context, c *cli.Command) error {
	if c.NArg() != 1 {
		return voice.Invalid("usage: voiceclone sample show <id>", nil)
	}
	st, err := sampleStore(ctx, c)
	if err != nil {
		return err
	}

	sample, err := st.Get(ctx, c.Args().First())
	if err != nil {
		return err
	}
	printMetadata(sample.Metadata)
	return nil
}

func handleSampleExport(ctx context.Context, c *cli.Command) error {
	if c.NArg() != 2 {
		return voice.Invalid("usage: voiceclone sample export <id> <output-file>", nil)
	}
	st, err := sampleStore(ctx, c)
	if err != nil {
		return err
	}

	sample, err := st.Get(ctx, c.Args().Get(0))
	if err != nil {
		return err
	}
	output := c.Args().Get(1)
	if err := os.WriteFile(output, sample.Audio, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	color.Green("✅ Wrote %d bytes to %s", len(sample.Audio), output)
	return nil
}

func handleSampleDelete(ctx context.Context, c *cli.Command) error {
	if c.NArg() != 1 {
		return voice.Invalid("usage: voiceclone sample delete <id>", nil)
	}
	st, err := sampleStore(ctx, c)
	if err != nil {
		return err
	}

	id := c.Args().First()
	if err := st.Delete(ctx, id); err != nil {
		return err
	}
	color.Green("✅ Deleted voice sample %s", id)
	return nil
}

// sampleStore opens storage without building providers
func sampleStore(ctx context.Context, c *cli.Command) (store.Store, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return openStore(ctx, c, cfg)
}

func printMetadata(m voice.Metadata) {
	fmt.Printf("  ID:       %s\n", m.ID)
	fmt.Printf("  Format:   %s\n", m.Format.Encoding)
	if m.Format.SampleRate > 0 {
		fmt.Printf("  Rate:     %d Hz, %d channel(s)\n", m.Format.SampleRate, m.Format.Channels)
	}
	if m.Format.Duration > 0 {
		fmt.Printf("  Duration: %.1fs\n", m.Format.Duration.Seconds())
	}
	fmt.Printf("  Size:     %d bytes\n", m.Size)
	if m.SHA256 != "" {
		fmt.Printf("  SHA-256:  %s\n", m.SHA256)
	}
	fmt.Printf("  Created:  %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
}
