package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumerank/internal/errors"
)

func newTestLogger() *errors.Logger {
	logger, _ := errors.New("debug")
	return logger
}

// fakeSecrets serves canned values keyed by path
type fakeSecrets struct {
	strings map[string]string
	err     error
}

func (f *fakeSecrets) GetStringSecret(path, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.strings[path+"#"+key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	return v, nil
}

func (f *fakeSecrets) GetStringSliceSecret(path, key string) ([]string, error) {
	v, err := f.GetStringSecret(path, key)
	if err != nil {
		return nil, err
	}
	return splitAndTrim(v), nil
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64 value", input: int64(42), expected: 42},
		{name: "float64 value", input: float64(42.0), expected: 42},
		{name: "string value", input: "42", expected: 42},
		{name: "invalid string value", input: "not-a-number", expectError: true},
		{name: "float string", input: "42.5", expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "secret/data/test")

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestDecodeKVv2(t *testing.T) {
	tests := []struct {
		name        string
		secret      *api.Secret
		expectError bool
		expected    *VaultSecret
	}{
		{
			name: "valid KVv2 secret",
			secret: &api.Secret{Data: map[string]any{
				"data":     map[string]any{"api_key": "abc"},
				"metadata": map[string]any{"version": float64(3)},
			}},
			expected: &VaultSecret{Data: map[string]any{"api_key": "abc"}, Version: 3},
		},
		{
			name: "missing data field",
			secret: &api.Secret{Data: map[string]any{
				"metadata": map[string]any{"version": float64(1)},
			}},
			expectError: true,
		},
		{
			name: "data field wrong type",
			secret: &api.Secret{Data: map[string]any{
				"data":     "not-a-map",
				"metadata": map[string]any{"version": float64(1)},
			}},
			expectError: true,
		},
		{
			name: "missing metadata",
			secret: &api.Secret{Data: map[string]any{
				"data": map[string]any{},
			}},
			expectError: true,
		},
		{
			name: "missing version",
			secret: &api.Secret{Data: map[string]any{
				"data":     map[string]any{},
				"metadata": map[string]any{"other": "value"},
			}},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := decodeKVv2(tt.secret, "secret/data/test")

			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestStringField(t *testing.T) {
	logger := newTestLogger()
	secret := &VaultSecret{Data: map[string]any{"api_key": "sk-1234567890", "n": 7}}

	v, err := stringField(secret, "p", "api_key", logger)
	require.NoError(t, err)
	assert.Equal(t, "sk-1234567890", v)

	_, err = stringField(secret, "p", "missing", logger)
	assert.ErrorContains(t, err, "not found")

	_, err = stringField(secret, "p", "n", logger)
	assert.ErrorContains(t, err, "not a string")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "sk-1****7890", maskSecret("sk-1234567890"))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "", maskSecret(""))
}

func TestResolveVaultToken(t *testing.T) {
	logger := newTestLogger()

	t.Run("token from config", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "direct-token"}, logger)
		assert.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("token from file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "vault-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token  \n"), 0600))

		token, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile}, logger)
		assert.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("missing token file", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{TokenFile: "/nonexistent/token/file"}, logger)
		assert.ErrorContains(t, err, "failed to read vault token file")
	})

	t.Run("no token provided", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{}, logger)
		assert.ErrorContains(t, err, "vault token is required")
	})

	t.Run("empty token from file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "empty-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("   \n  \n"), 0600))

		_, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile}, logger)
		assert.ErrorContains(t, err, "vault token is required")
	})
}

func TestLoadAllSecretsFromVault(t *testing.T) {
	logger := newTestLogger()

	t.Run("applies both secrets", func(t *testing.T) {
		cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{
			APIKeys:   "secret/data/resumerank/api",
			ClientKey: "secret/data/resumerank/client",
		}}}
		client := &fakeSecrets{strings: map[string]string{
			"secret/data/resumerank/api#keys":       "k1, k2 ,k3",
			"secret/data/resumerank/client#api_key": "upload-key",
		}}

		require.NoError(t, loadAllSecretsFromVault(client, cfg, logger))
		assert.Equal(t, []string{"k1", "k2", "k3"}, cfg.Server.APIKeys)
		assert.Equal(t, "upload-key", cfg.Client.APIKey)
	})

	t.Run("unset paths are skipped", func(t *testing.T) {
		cfg := &Config{Client: ClientConfig{APIKey: "from-env"}}
		require.NoError(t, loadAllSecretsFromVault(&fakeSecrets{err: fmt.Errorf("must not be called")}, cfg, logger))
		assert.Equal(t, "from-env", cfg.Client.APIKey)
	})

	t.Run("empty values keep existing config", func(t *testing.T) {
		cfg := &Config{
			Client: ClientConfig{APIKey: "from-env"},
			Server: ServerConfig{APIKeys: []string{"existing"}},
			Vault: VaultConfig{Secrets: VaultSecrets{
				APIKeys:   "api",
				ClientKey: "client",
			}},
		}
		client := &fakeSecrets{strings: map[string]string{"api#keys": "", "client#api_key": ""}}

		require.NoError(t, loadAllSecretsFromVault(client, cfg, logger))
		assert.Equal(t, "from-env", cfg.Client.APIKey)
		assert.Equal(t, []string{"existing"}, cfg.Server.APIKeys)
	})

	t.Run("read errors propagate", func(t *testing.T) {
		cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{ClientKey: "client"}}}
		err := loadAllSecretsFromVault(&fakeSecrets{err: fmt.Errorf("permission denied")}, cfg, logger)
		assert.ErrorContains(t, err, "failed to load upload API key from vault")
	})
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	cfg := &Config{Vault: VaultConfig{Enabled: false}}
	assert.NoError(t, ApplyVaultSecrets(cfg, newTestLogger()))
}

func TestGetSecretV2Uninitialized(t *testing.T) {
	var vc *VaultClient
	_, err := vc.GetSecretV2("secret/data/x")
	assert.ErrorContains(t, err, "not initialized")
}
