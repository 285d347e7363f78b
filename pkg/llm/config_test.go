package llm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCredential_Env(t *testing.T) {
	t.Setenv("DP_TEST_KEY", "  sk-from-env  ")

	key, err := LoadCredential(CredentialConfig{Source: "env", Env: "DP_TEST_KEY"}, "")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", key)
}

func TestLoadCredential_EnvMissing(t *testing.T) {
	t.Setenv("DP_TEST_KEY", "")

	_, err := LoadCredential(CredentialConfig{Source: "env", Env: "DP_TEST_KEY"}, "")
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
}

func TestLoadCredential_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openaiapikey.txt")
	require.NoError(t, os.WriteFile(path, []byte("sk-from-file\n"), 0600))

	key, err := LoadCredential(CredentialConfig{Source: "file", File: path}, "")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-file", key)
}

func TestLoadCredential_FileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.txt")

	_, err := LoadCredential(CredentialConfig{Source: "file", File: path}, "")
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
}

func TestLoadCredential_DirectWins(t *testing.T) {
	t.Setenv("DP_REF_KEY", "sk-ref")

	key, err := LoadCredential(CredentialConfig{Source: "file", File: "/does/not/exist"}, "${DP_REF_KEY}")
	require.NoError(t, err)
	assert.Equal(t, "sk-ref", key)
}

func TestLoadCredential_UnknownSource(t *testing.T) {
	_, err := LoadCredential(CredentialConfig{Source: "vault"}, "")

	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", MaskAPIKey("short"))
	assert.Equal(t, "sk-a****wxyz", MaskAPIKey("sk-abcdefghijklmnopqrstuvwxyz"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "ollama", mutate: func(c *Config) { c.Provider = "ollama" }},
		{name: "missing model", mutate: func(c *Config) { c.Model = "" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "foo" }, wantErr: true},
		{name: "unknown source", mutate: func(c *Config) { c.Credential.Source = "vault" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
