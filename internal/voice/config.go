package voice

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultSamplesDir    = "voices"
	DefaultOutputName    = "generated_speech"
	DefaultServerAddr    = "127.0.0.1:7860"
	DefaultProvider      = "elevenlabs"
	DefaultMaxChars      = 5000
	DefaultMinSampleSecs = 1.0
	DefaultTimeoutSecs   = 60
)

// ConfigFile is the on-disk configuration
type ConfigFile struct {
	DefaultProvider  string                    `json:"defaultProvider,omitempty"`
	MaxChars         int                       `json:"maxChars,omitempty"`
	MinSampleSeconds float64                   `json:"minSampleSeconds,omitempty"`
	TimeoutSeconds   int                       `json:"timeoutSeconds,omitempty"`
	Storage          *StorageConfig            `json:"storage,omitempty"`
	Server           *ServerConfig             `json:"server,omitempty"`
	Providers        map[string]ProviderConfig `json:"providers,omitempty"`
}

// StorageConfig selects where voice samples live
type StorageConfig struct {
	Backend string    `json:"backend,omitempty"` // file (default) or s3
	Dir     string    `json:"dir,omitempty"`
	S3      *S3Config `json:"s3,omitempty"`
}

// S3Config configures an S3-compatible bucket
type S3Config struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	Insecure  bool   `json:"insecure,omitempty"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string   `json:"addr,omitempty"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// ProviderConfig represents provider-specific configuration
type ProviderConfig struct {
	// Common options
	APIKey  string  `json:"apiKey,omitempty"`
	BaseURL string  `json:"baseURL,omitempty"`
	Voice   string  `json:"voice,omitempty"`
	Model   string  `json:"model,omitempty"`
	Format  string  `json:"format,omitempty"`
	Speed   float64 `json:"speed,omitempty"`

	// ElevenLabs options
	Stability       float64 `json:"stability,omitempty"`
	SimilarityBoost float64 `json:"similarityBoost,omitempty"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost *bool   `json:"useSpeakerBoost,omitempty"`

	// Amazon Polly options
	Region     string `json:"region,omitempty"`
	Engine     string `json:"engine,omitempty"`
	SampleRate string `json:"sampleRate,omitempty"`

	// Google Cloud options
	Language string `json:"language,omitempty"`
}

// ConfigLoader handles loading configuration from files
type ConfigLoader struct {
	projectPath string
	globalPath  string
}

// NewConfigLoader creates a new config loader
func NewConfigLoader() *ConfigLoader {
	homeDir, _ := os.UserHomeDir()
	return &ConfigLoader{
		projectPath: filepath.Join(".voiceclone", "config.json"),
		globalPath:  filepath.Join(homeDir, ".voiceclone", "config.json"),
	}
}

// ProjectPath returns the project config path relative to a working directory
func (l *ConfigLoader) ProjectPath(workDir string) string {
	return filepath.Join(workDir, l.projectPath)
}

// GlobalPath returns the per-user config path
func (l *ConfigLoader) GlobalPath() string {
	return l.globalPath
}

// LoadConfig loads configuration with priority:
// 1. Project-local config (.voiceclone/config.json)
// 2. Global config (~/.voiceclone/config.json)
// Returns nil if no config file found
func (l *ConfigLoader) LoadConfig(workDir string) (*ConfigFile, error) {
	projectConfigPath := l.ProjectPath(workDir)
	config, err := l.loadFromFile(projectConfigPath)
	if err == nil {
		log.Debug().Str("path", projectConfigPath).Msg("Loaded project config")
		return config, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	config, err = l.loadFromFile(l.globalPath)
	if err == nil {
		log.Debug().Str("path", l.globalPath).Msg("Loaded global config")
		return config, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	log.Debug().Msg("No config file found")
	return nil, nil
}

// LoadFromPath loads configuration from a specific path
func (l *ConfigLoader) LoadFromPath(path string) (*ConfigFile, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, err
	}
	return l.loadFromFile(path)
}

// validateConfigPath checks that the config path is safe to use
func validateConfigPath(path string) error {
	// Check before cleaning so hidden traversal is caught too
	if strings.Contains(path, "..") {
		return fmt.Errorf("invalid config path: path traversal not allowed")
	}
	if filepath.Ext(filepath.Clean(path)) != ".json" {
		return fmt.Errorf("invalid config path: must be a .json file")
	}
	return nil
}

func (l *ConfigLoader) loadFromFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := expandEnvVars(string(data))

	var config ConfigFile
	if err := json.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	l.checkFilePermissions(path)

	return &config, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := match[2 : len(match)-1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Variable names may hint at secrets, don't log them
		log.Debug().Msg("Referenced environment variable not set in config")
		return ""
	})
}

func (l *ConfigLoader) checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		log.Warn().
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Msg("Config file may contain secrets but has permissive permissions. Consider: chmod 600")
	}
}

// GetProviderConfig returns configuration for a specific provider
func (c *ConfigFile) GetProviderConfig(providerName string) *ProviderConfig {
	if c == nil || c.Providers == nil {
		return nil
	}
	if config, exists := c.Providers[providerName]; exists {
		return &config
	}
	return nil
}

// GetEffectiveProvider returns the provider to use (explicit, configured default, or elevenlabs)
func (c *ConfigFile) GetEffectiveProvider(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c != nil && c.DefaultProvider != "" {
		return c.DefaultProvider
	}
	return DefaultProvider
}

// EffectiveMaxChars returns the text length limit
func (c *ConfigFile) EffectiveMaxChars() int {
	if c != nil && c.MaxChars > 0 {
		return c.MaxChars
	}
	return DefaultMaxChars
}

// EffectiveMinSample returns the minimum accepted sample duration
func (c *ConfigFile) EffectiveMinSample() time.Duration {
	secs := DefaultMinSampleSecs
	if c != nil && c.MinSampleSeconds > 0 {
		secs = c.MinSampleSeconds
	}
	return time.Duration(secs * float64(time.Second))
}

// EffectiveTimeout returns the per-request provider timeout
func (c *ConfigFile) EffectiveTimeout() time.Duration {
	secs := DefaultTimeoutSecs
	if c != nil && c.TimeoutSeconds > 0 {
		secs = c.TimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// EffectiveStorage returns storage settings with defaults applied
func (c *ConfigFile) EffectiveStorage() StorageConfig {
	st := StorageConfig{Backend: "file", Dir: DefaultSamplesDir}
	if c == nil || c.Storage == nil {
		return st
	}
	if c.Storage.Backend != "" {
		st.Backend = c.Storage.Backend
	}
	if c.Storage.Dir != "" {
		st.Dir = c.Storage.Dir
	}
	st.S3 = c.Storage.S3
	return st
}

// EffectiveServer returns server settings with defaults applied
func (c *ConfigFile) EffectiveServer() ServerConfig {
	sc := ServerConfig{Addr: DefaultServerAddr}
	if c == nil || c.Server == nil {
		return sc
	}
	if c.Server.Addr != "" {
		sc.Addr = c.Server.Addr
	}
	sc.AllowedOrigins = c.Server.AllowedOrigins
	return sc
}

// Validate validates the configuration
func (c *ConfigFile) Validate() []string {
	var errors []string

	if c == nil {
		return errors
	}

	if c.DefaultProvider != "" && !slices.Contains(KnownProviders, c.DefaultProvider) {
		errors = append(errors, fmt.Sprintf("defaultProvider: unknown provider '%s'", c.DefaultProvider))
	}
	if c.MaxChars < 0 {
		errors = append(errors, "maxChars must not be negative")
	}
	if c.MinSampleSeconds < 0 {
		errors = append(errors, "minSampleSeconds must not be negative")
	}
	if c.TimeoutSeconds < 0 {
		errors = append(errors, "timeoutSeconds must not be negative")
	}

	if c.Storage != nil {
		switch c.Storage.Backend {
		case "", "file":
		case "s3":
			if c.Storage.S3 == nil || c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "" {
				errors = append(errors, "storage.s3: endpoint and bucket are required for the s3 backend")
			}
		default:
			errors = append(errors, fmt.Sprintf("storage.backend: unknown backend '%s'", c.Storage.Backend))
		}
	}

	// Sorted so output is stable
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		provider := c.Providers[name]
		errors = append(errors, validateProviderConfig(name, &provider)...)
	}

	return errors
}

// KnownProviders lists the provider names accepted in configuration
var KnownProviders = []string{"elevenlabs", "openai", "polly", "gcp"}

func validateProviderConfig(name string, config *ProviderConfig) []string {
	var errors []string

	switch name {
	case "elevenlabs":
		if config.Stability < 0 || config.Stability > 1 {
			errors = append(errors, fmt.Sprintf("%s: stability must be between 0.0 and 1.0", name))
		}
		if config.SimilarityBoost < 0 || config.SimilarityBoost > 1 {
			errors = append(errors, fmt.Sprintf("%s: similarityBoost must be between 0.0 and 1.0", name))
		}
		if config.Style < 0 || config.Style > 1 {
			errors = append(errors, fmt.Sprintf("%s: style must be between 0.0 and 1.0", name))
		}
	case "openai":
	case "polly":
		validRegions := []string{"us-east-1", "us-west-2", "eu-west-1", "eu-central-1", "ap-northeast-1", "ap-southeast-1"}
		if config.Region != "" && !slices.Contains(validRegions, config.Region) {
			errors = append(errors, fmt.Sprintf("%s: region '%s' may not be valid", name, config.Region))
		}
	case "gcp":
	default:
		errors = append(errors, fmt.Sprintf("%s: unknown provider", name))
	}

	if config.Speed != 0 && (config.Speed < 0.25 || config.Speed > 4.0) {
		errors = append(errors, fmt.Sprintf("%s: speed must be between 0.25 and 4.0", name))
	}

	return errors
}

// GenerateExampleConfig generates an example configuration
func GenerateExampleConfig() string {
	speakerBoost := true
	example := ConfigFile{
		DefaultProvider:  DefaultProvider,
		MaxChars:         DefaultMaxChars,
		MinSampleSeconds: 10,
		TimeoutSeconds:   DefaultTimeoutSecs,
		Storage: &StorageConfig{
			Backend: "file",
			Dir:     DefaultSamplesDir,
		},
		Server: &ServerConfig{
			Addr: DefaultServerAddr,
		},
		Providers: map[string]ProviderConfig{
			"elevenlabs": {
				APIKey:          "${ELEVENLABS_API_KEY}",
				Voice:           "21m00Tcm4TlvDq8ikWAM",
				Model:           "eleven_multilingual_v2",
				Stability:       0.5,
				SimilarityBoost: 0.75,
				UseSpeakerBoost: &speakerBoost,
			},
			"openai": {
				APIKey: "${OPENAI_API_KEY}",
				Model:  "tts-1",
				Voice:  "alloy",
				Speed:  1.0,
				Format: "mp3",
			},
			"polly": {
				Region:     "us-east-1",
				Voice:      "Joanna",
				Engine:     "neural",
				SampleRate: "22050",
			},
			"gcp": {
				Voice:    "en-US-Neural2-D",
				Language: "en-US",
			},
		},
	}

	data, _ := json.MarshalIndent(example, "", "  ")
	return string(data)
}

// MaskSecrets masks sensitive values in config for display.
// Only the presence and length of a key are shown.
func (c *ConfigFile) MaskSecrets() *ConfigFile {
	if c == nil {
		return nil
	}

	masked := *c
	masked.Providers = make(map[string]ProviderConfig, len(c.Providers))
	for name, provider := range c.Providers {
		maskedProvider := provider
		if provider.APIKey != "" {
			maskedProvider.APIKey = fmt.Sprintf("[set, %d chars]", len(provider.APIKey))
		}
		masked.Providers[name] = maskedProvider
	}

	if c.Storage != nil && c.Storage.S3 != nil {
		st := *c.Storage
		s3 := *c.Storage.S3
		if s3.SecretKey != "" {
			s3.SecretKey = fmt.Sprintf("[set, %d chars]", len(s3.SecretKey))
		}
		st.S3 = &s3
		masked.Storage = &st
	}

	return &masked
}
