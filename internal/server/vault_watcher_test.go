package server

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumerank/internal/config"
)

// MockVaultClient is a mock implementation for testing
type MockVaultClient struct {
	mu      sync.Mutex
	secrets map[string]*config.VaultSecret
	fail    error
}

func (m *MockVaultClient) GetSecretV2(path string) (*config.VaultSecret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	return m.secrets[path], nil
}

func (m *MockVaultClient) GetStringSliceSecret(path, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if secret, exists := m.secrets[path]; exists {
		if value, ok := secret.Data[key].([]string); ok {
			return value, nil
		}
	}
	return nil, nil
}

func (m *MockVaultClient) set(path string, version int64, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[path] = &config.VaultSecret{Data: map[string]any{"keys": keys}, Version: version}
}

func TestAPIKeyWatcher_ReloadsOnVersionChange(t *testing.T) {
	vault := &MockVaultClient{secrets: map[string]*config.VaultSecret{}}
	vault.set("secret/data/keys", 1, "alpha")

	var got [][]string
	vw := NewAPIKeyWatcher(vault, "secret/data/keys", time.Minute, func(keys []string) {
		got = append(got, keys)
	}, nil)

	require.NoError(t, vw.poll())
	require.NoError(t, vw.poll(), "unchanged version is not reloaded")

	vault.set("secret/data/keys", 2, "alpha", "beta")
	require.NoError(t, vw.poll())

	assert.Equal(t, [][]string{{"alpha"}, {"alpha", "beta"}}, got)
	assert.Equal(t, int64(2), vw.Status()["last_version"])
}

func TestAPIKeyWatcher_KeepsKeysOnEmptySecret(t *testing.T) {
	vault := &MockVaultClient{secrets: map[string]*config.VaultSecret{}}
	vault.set("secret/data/keys", 3)

	called := false
	vw := NewAPIKeyWatcher(vault, "secret/data/keys", time.Minute, func([]string) { called = true }, nil)

	require.NoError(t, vw.poll())
	assert.False(t, called)
}

func TestAPIKeyWatcher_RecordsErrors(t *testing.T) {
	vault := &MockVaultClient{secrets: map[string]*config.VaultSecret{}, fail: fmt.Errorf("permission denied")}
	vw := NewAPIKeyWatcher(vault, "secret/data/keys", time.Minute, func([]string) {}, nil)

	require.Error(t, vw.poll())
	assert.Contains(t, vw.Status()["last_error"], "permission denied")
}

func TestAPIKeyWatcher_StartStop(t *testing.T) {
	vault := &MockVaultClient{secrets: map[string]*config.VaultSecret{}}
	vw := NewAPIKeyWatcher(vault, "p", 10*time.Millisecond, func([]string) {}, nil)

	require.NoError(t, vw.Start())
	assert.Error(t, vw.Start())
	assert.Equal(t, true, vw.Status()["running"])
	require.NoError(t, vw.Stop())
	require.NoError(t, vw.Stop())

	zero := NewAPIKeyWatcher(vault, "p", 0, func([]string) {}, nil)
	assert.Error(t, zero.Start())
}
