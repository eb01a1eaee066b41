package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

var (
	version  = "dev"
	revision = "none"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Debug().Err(err).Str("kind", string(voice.KindOf(err))).Msg("Command failed")
		_, _ = color.New(color.FgRed).Fprintln(os.Stderr, "❌ "+voice.Message(err))
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "voiceclone",
		Usage: "Record voice samples and synthesize speech in a stock or cloned voice",
		Description: `voiceclone stores voice samples and turns text into speech, either with a
provider's stock voice (basic mode) or in the voice of a saved sample (cloned mode).`,
		Version: fmt.Sprintf("%s (rev: %s)", version, revision),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"V"},
				Usage:   "Enable verbose logging",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to config file (default: .voiceclone/config.json, then ~/.voiceclone/config.json)",
			},
			&cli.StringFlag{
				Name:  "samples-dir",
				Usage: "Directory for voice samples when using file storage",
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "sample",
				Aliases: []string{"samples"},
				Usage:   "Manage saved voice samples",
				Commands: []*cli.Command{
					{
						Name:      "save",
						Usage:     "Save a recorded voice sample",
						ArgsUsage: "<audio-file>",
						Action:    handleSampleSave,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "sample-rate",
								Usage: "Sample rate in Hz, required for raw PCM input",
							},
							&cli.IntFlag{
								Name:  "channels",
								Usage: "Channel count for raw PCM input",
								Value: 1,
							},
						},
					},
					{
						Name:    "list",
						Aliases: []string{"ls"},
						Usage:   "List saved voice samples",
						Action:  handleSampleList,
					},
					{
						Name:      "show",
						Usage:     "Show a voice sample's metadata",
						ArgsUsage: "<id>",
						Action:    handleSampleShow,
					},
					{
						Name:      "export",
						Usage:     "Write a voice sample's audio to a file",
						ArgsUsage: "<id> <output-file>",
						Action:    handleSampleExport,
					},
					{
						Name:      "delete",
						Aliases:   []string{"rm"},
						Usage:     "Delete a voice sample",
						ArgsUsage: "<id>",
						Action:    handleSampleDelete,
					},
				},
			},
			{
				Name:      "speak",
				Usage:     "Synthesize speech from text",
				ArgsUsage: "<text>",
				Action:    handleSpeak,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "basic (stock voice) or cloned (saved sample)",
						Value:   string(voice.ModeBasic),
					},
					&cli.StringFlag{
						Name:    "voice-ref",
						Aliases: []string{"r"},
						Usage:   "Saved sample ID for cloned mode",
					},
					&cli.StringFlag{
						Name:  "voice",
						Usage: "Provider stock voice for basic mode",
					},
					&cli.StringFlag{
						Name:    "provider",
						Aliases: []string{"p"},
						Usage:   "Speech provider (elevenlabs, openai, polly, gcp)",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format (mp3, wav, ogg, pcm)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output audio file (default: " + voice.DefaultOutputName + ".<format>)",
					},
					&cli.StringFlag{
						Name:  "text-file",
						Usage: "Read the text from a file instead of arguments",
					},
					&cli.StringFlag{
						Name:  "api-key",
						Usage: "Provider API key (default: config or <PROVIDER>_API_KEY)",
					},
				},
			},
			{
				Name:   "voices",
				Usage:  "List a provider's stock voices",
				Action: handleVoices,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "provider",
						Aliases: []string{"p"},
						Usage:   "Speech provider",
					},
					&cli.StringFlag{
						Name:  "api-key",
						Usage: "Provider API key",
					},
				},
			},
			{
				Name:  "config",
				Usage: "Manage configuration",
				Commands: []*cli.Command{
					{
						Name:   "init",
						Usage:  "Create an example config file",
						Action: handleConfigInit,
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  "global",
								Usage: "Create in ~/.voiceclone instead of the current project",
							},
						},
					},
					{
						Name:   "show",
						Usage:  "Show the effective config with secrets masked",
						Action: handleConfigShow,
					},
					{
						Name:   "validate",
						Usage:  "Validate the config file",
						Action: handleConfigValidate,
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: handleServe,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (default: config server.addr or " + voice.DefaultServerAddr + ")",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the tools over MCP on stdin/stdout",
				Action: handleMCP,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) error {
			if c.Bool("verbose") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			return nil
		},
	}
}
