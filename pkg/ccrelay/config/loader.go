package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches environment variable patterns in config values:
//   - ${VAR_NAME}          - simple variable
//   - ${VAR_NAME:-default} - default value if not set
//   - ${VAR_NAME:?error}   - error message if not set
//   - $VAR_NAME            - bare variable
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// Environment variables that override file values.
const (
	EnvDiscordToken     = "CC_DISCORD_TOKEN"
	EnvDiscordChannelID = "CC_DISCORD_CHANNEL_ID"
	EnvDiscordUserID    = "CC_DISCORD_USER_ID"
	EnvClaudeAPIKey     = "CC_CLAUDE_API_KEY"
	EnvAnthropicAPIKey  = "CC_ANTHROPIC_API_KEY"
)

// Load builds the configuration. It loads .env files, reads path when it
// is non-empty, applies environment overrides and finally falls back to
// the OS keyring for the Discord token.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, err
		}
		checkFilePermissions(path)
	}

	applyEnv(cfg)

	if cfg.Discord.Token == "" {
		cfg.Discord.Token = GetKeyring(KeyringDiscordToken)
	}
	return cfg, nil
}

// Parse expands environment references in data and decodes it over the
// defaults.
func Parse(data []byte) (*Config, error) {
	expanded, err := expandEnvVarsWithValidation(string(data))
	if err != nil {
		return nil, fmt.Errorf("config: expanding environment variables: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parsing YAML: %w", err)
	}
	return cfg, nil
}

// FindConfigFile searches for a config file in standard locations.
func FindConfigFile() string {
	candidates := []string{
		"ccrelay.yaml",
		"ccrelay.yml",
		"config.yaml",
		"config.yml",
		"configs/ccrelay.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// applyEnv overrides credentials from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDiscordToken); v != "" {
		cfg.Discord.Token = v
	}
	if v := os.Getenv(EnvDiscordChannelID); v != "" {
		cfg.Discord.ChannelID = v
	}
	if v := os.Getenv(EnvDiscordUserID); v != "" {
		cfg.Discord.UserID = v
	}
	if v := os.Getenv(EnvClaudeAPIKey); v != "" {
		cfg.Claude.APIKey = v
	} else if v := os.Getenv(EnvAnthropicAPIKey); v != "" {
		cfg.Claude.APIKey = v
	}
}

// loadEnvFiles loads .env files. Existing variables are not overwritten.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR}, ${VAR:-default}, ${VAR:?error} and $VAR
// references with environment values. Unset plain references are kept;
// an unset ${VAR:?error} becomes an ERROR: marker.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		varName, modifier, value, bare := sub[1], sub[2], sub[3], sub[4]

		if bare != "" {
			if val, ok := os.LookupEnv(bare); ok {
				return val
			}
			return match
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		switch modifier {
		case "?":
			if value == "" {
				value = "required environment variable not set"
			}
			return "ERROR:" + varName + ":" + value
		case "-":
			return value
		}
		return match
	})
}

// expandEnvVarsWithValidation is like expandEnvVars but fails when any
// ${VAR:?error} reference is unset.
func expandEnvVarsWithValidation(input string) (string, error) {
	result := expandEnvVars(input)
	idx := strings.Index(result, "ERROR:")
	if idx < 0 {
		return result, nil
	}

	rest := result[idx+len("ERROR:"):]
	varName, msg, ok := strings.Cut(rest, ":")
	if !ok {
		return "", fmt.Errorf("malformed error marker")
	}
	if line, _, found := strings.Cut(msg, "\n"); found {
		msg = line
	}
	return "", fmt.Errorf("%s - %s", varName, msg)
}

// checkFilePermissions warns if the config file is group or world readable.
func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if mode := info.Mode().Perm(); mode&0o044 != 0 {
		slog.Warn("config file has open permissions, consider restricting",
			"path", filepath.Clean(path),
			"current", fmt.Sprintf("%04o", mode),
			"recommended", "0600",
		)
	}
}
