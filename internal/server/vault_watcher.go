package server

import (
	"fmt"
	"sync"
	"time"

	"resumerank/internal/config"
	"resumerank/internal/errors"
)

// VaultClientInterface defines the Vault operations the key watcher needs
type VaultClientInterface interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
	GetStringSliceSecret(path, key string) ([]string, error)
}

// APIKeyWatcher polls a Vault KVv2 secret holding the session API keys and
// hands the new list to onKeys whenever the secret version moves forward.
type APIKeyWatcher struct {
	mu sync.RWMutex

	client       VaultClientInterface
	secretPath   string
	pollInterval time.Duration
	onKeys       func(keys []string)
	logger       *errors.Logger

	stopChan    chan struct{}
	done        chan struct{}
	running     bool
	lastVersion int64
	lastError   string
}

// NewAPIKeyWatcher creates a watcher; call Start to begin polling
func NewAPIKeyWatcher(client VaultClientInterface, secretPath string, pollInterval time.Duration, onKeys func([]string), logger *errors.Logger) *APIKeyWatcher {
	if logger == nil {
		logger = errors.Discard()
	}
	return &APIKeyWatcher{
		client:       client,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		onKeys:       onKeys,
		logger:       logger,
	}
}

// Start begins polling Vault for key changes
func (vw *APIKeyWatcher) Start() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if vw.running {
		return fmt.Errorf("API key watcher is already running")
	}
	if vw.pollInterval <= 0 {
		return fmt.Errorf("API key watcher needs a positive poll interval")
	}

	vw.stopChan = make(chan struct{})
	vw.done = make(chan struct{})
	vw.running = true
	go vw.pollLoop(vw.stopChan, vw.done)

	vw.logger.Info("API key watcher started", "secret_path", vw.secretPath, "poll_interval", vw.pollInterval)
	return nil
}

// Stop stops polling and waits for the loop to exit
func (vw *APIKeyWatcher) Stop() error {
	vw.mu.Lock()
	if !vw.running {
		vw.mu.Unlock()
		return nil
	}
	close(vw.stopChan)
	done := vw.done
	vw.running = false
	vw.mu.Unlock()

	<-done
	vw.logger.Info("API key watcher stopped")
	return nil
}

func (vw *APIKeyWatcher) pollLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(vw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := vw.poll(); err != nil {
				vw.logger.LogError(err, "Failed to refresh API keys from Vault", "path", vw.secretPath)
			}
		case <-stop:
			return
		}
	}
}

// poll reloads the keys when the secret version changed
func (vw *APIKeyWatcher) poll() error {
	changed, err := vw.checkForUpdates()
	if err != nil || !changed {
		vw.recordError(err)
		return err
	}

	keys, err := vw.client.GetStringSliceSecret(vw.secretPath, "keys")
	if err != nil {
		err = fmt.Errorf("failed to fetch API keys: %w", err)
		vw.recordError(err)
		return err
	}
	if len(keys) == 0 {
		vw.logger.Warn("Vault returned no API keys, keeping the current set", "path", vw.secretPath)
		return nil
	}

	vw.onKeys(keys)
	vw.recordError(nil)
	vw.logger.Info("API keys reloaded from Vault", "count", len(keys))
	return nil
}

// checkForUpdates checks if the Vault secret version has changed
func (vw *APIKeyWatcher) checkForUpdates() (bool, error) {
	secret, err := vw.client.GetSecretV2(vw.secretPath)
	if err != nil {
		return false, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil {
		return false, fmt.Errorf("secret %s not found", vw.secretPath)
	}

	vw.mu.Lock()
	defer vw.mu.Unlock()
	if secret.Version > vw.lastVersion {
		vw.lastVersion = secret.Version
		return true, nil
	}
	return false, nil
}

func (vw *APIKeyWatcher) recordError(err error) {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if err != nil {
		vw.lastError = err.Error()
	} else {
		vw.lastError = ""
	}
}

// Status returns the current status for health reporting
func (vw *APIKeyWatcher) Status() map[string]any {
	vw.mu.RLock()
	defer vw.mu.RUnlock()
	status := map[string]any{
		"running":       vw.running,
		"poll_interval": vw.pollInterval.String(),
		"secret_path":   vw.secretPath,
		"last_version":  vw.lastVersion,
	}
	if vw.lastError != "" {
		status["last_error"] = vw.lastError
	}
	return status
}
