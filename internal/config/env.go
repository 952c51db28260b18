package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvAssemblyAIKey = "ASSEMBLYAI_API_KEY"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvElevenLabsKey = "ELEVENLABS_API_KEY"
)

// Credentials holds the API keys for the three hosted services.
type Credentials struct {
	AssemblyAI string
	OpenAI     string
	ElevenLabs string
}

// LoadEnvFile merges a dotenv file into the process environment.
//
// Variables already set in the environment win. When path is empty, ./.env is
// used if present; an explicit path that does not exist is an error.
func LoadEnvFile(path string) (string, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = ".env"
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("env file %q: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("load env file %q: %w", path, err)
	}
	return path, nil
}

// CredentialsFromEnv reads API keys from the environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		AssemblyAI: strings.TrimSpace(os.Getenv(EnvAssemblyAIKey)),
		OpenAI:     strings.TrimSpace(os.Getenv(EnvOpenAIKey)),
		ElevenLabs: strings.TrimSpace(os.Getenv(EnvElevenLabsKey)),
	}
}

// Missing lists the environment variable names with no value.
func (c Credentials) Missing() []string {
	missing := make([]string, 0, 3)
	if c.AssemblyAI == "" {
		missing = append(missing, EnvAssemblyAIKey)
	}
	if c.OpenAI == "" {
		missing = append(missing, EnvOpenAIKey)
	}
	if c.ElevenLabs == "" {
		missing = append(missing, EnvElevenLabsKey)
	}
	return missing
}

// Require returns an error naming every missing key.
func (c Credentials) Require() error {
	if missing := c.Missing(); len(missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}
