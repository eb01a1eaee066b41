// Package mcpserver exposes sample recording and synthesis as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/ursnani/Voice-Cloning/internal/voice"
	"github.com/ursnani/Voice-Cloning/internal/voice/store"
)

// Synthesizer runs synthesis requests
type Synthesizer interface {
	Synthesize(ctx context.Context, req voice.Request) (*voice.Result, error)
}

// Tools implements the tool handlers
type Tools struct {
	samples store.Store
	synth   Synthesizer
	baseDir string
}

// NewTools creates tool handlers. Relative paths resolve against baseDir.
func NewTools(samples store.Store, synth Synthesizer, baseDir string) *Tools {
	return &Tools{samples: samples, synth: synth, baseDir: baseDir}
}

// NewServer registers every tool on a new MCP server
func NewServer(t *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer("voiceclone", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("save_voice_sample",
		mcp.WithDescription("Save a recorded voice sample (wav, mp3, ogg, flac, webm or raw pcm) for cloned synthesis"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the audio file")),
		mcp.WithNumber("sample_rate", mcp.Description("Sample rate in Hz, required for raw pcm")),
	), t.SaveVoiceSample)

	s.AddTool(mcp.NewTool("list_voice_samples",
		mcp.WithDescription("List saved voice samples, oldest first"),
	), t.ListVoiceSamples)

	s.AddTool(mcp.NewTool("speak",
		mcp.WithDescription("Synthesize speech and write the audio to a file"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to speak")),
		mcp.WithString("mode", mcp.Enum("basic", "cloned"), mcp.Description("basic uses a stock voice, cloned uses a saved sample")),
		mcp.WithString("voice_ref", mcp.Description("Sample ID for cloned mode")),
		mcp.WithString("provider", mcp.Description("Provider name, defaults to the configured one")),
		mcp.WithString("format", mcp.Enum("mp3", "wav", "ogg", "pcm"), mcp.Description("Audio format, defaults to the provider's configured one")),
		mcp.WithString("output", mcp.Description("Output file, defaults to "+voice.DefaultOutputName+".<format>")),
	), t.Speak)

	return s
}

// ServeStdio serves the tools over stdin/stdout until the client disconnects
func ServeStdio(t *Tools, version string) error {
	return server.ServeStdio(NewServer(t, version))
}

func (t *Tools) SaveVoiceSample(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path = t.resolve(path)

	audio, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
	}

	format := voice.Format{
		Encoding:   voice.ParseEncoding(filepath.Ext(path)),
		SampleRate: int(req.GetFloat("sample_rate", 0)),
	}
	meta, err := t.samples.Save(ctx, audio, format)
	if err != nil {
		return toolError(err), nil
	}

	log.Info().Str("id", meta.ID).Str("path", path).Msg("Voice sample saved via MCP")
	return mcp.NewToolResultText(fmt.Sprintf("Saved voice sample %s (%s, %.1fs). Use voice_ref %q for cloned speech.",
		meta.ID, meta.Format.Encoding, meta.Format.Duration.Seconds(), meta.ID)), nil
}

type sampleSummary struct {
	ID        string  `json:"id"`
	Encoding  string  `json:"encoding"`
	Seconds   float64 `json:"seconds,omitempty"`
	Size      int64   `json:"size"`
	CreatedAt string  `json:"created_at"`
}

func (t *Tools) ListVoiceSamples(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	samples := []sampleSummary{}
	for m, err := range t.samples.List(ctx) {
		if err != nil {
			return toolError(err), nil
		}
		samples = append(samples, sampleSummary{
			ID:        m.ID,
			Encoding:  string(m.Format.Encoding),
			Seconds:   m.Format.Duration.Seconds(),
			Size:      m.Size,
			CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (t *Tools) Speak(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := t.synth.Synthesize(ctx, voice.Request{
		Text:     text,
		Mode:     voice.Mode(req.GetString("mode", string(voice.ModeBasic))),
		VoiceRef: req.GetString("voice_ref", ""),
		Provider: req.GetString("provider", ""),
		Format:   voice.AudioFormat(req.GetString("format", "")),
	})
	if err != nil {
		return toolError(err), nil
	}

	output := t.resolve(req.GetString("output", voice.DefaultOutputFile(result.Format)))
	if err := os.WriteFile(output, result.Audio, 0644); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to write %s: %v", output, err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Wrote %d bytes of %s audio to %s (%s mode via %s)",
		len(result.Audio), result.Format, output, result.Mode, result.Provider)), nil
}

func (t *Tools) resolve(path string) string {
	if filepath.IsAbs(path) || t.baseDir == "" {
		return path
	}
	return filepath.Join(t.baseDir, path)
}

func toolError(err error) *mcp.CallToolResult {
	log.Debug().Err(err).Str("kind", string(voice.KindOf(err))).Msg("MCP tool failed")
	return mcp.NewToolResultError(voice.Message(err))
}
