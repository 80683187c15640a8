package intake

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"resumerank/internal/errors"
)

// Fingerprint is the dedup key for a source. Weak is set when the content
// could not be read and the name_size fallback was used instead; distinct
// files with the same name and size collide under a weak key.
type Fingerprint struct {
	Value string
	Weak  bool
}

func (f Fingerprint) String() string { return f.Value }

// Hasher computes content fingerprints
type Hasher struct {
	logger *errors.Logger
}

func NewHasher(logger *errors.Logger) *Hasher {
	if logger == nil {
		logger = errors.Discard()
	}
	return &Hasher{logger: logger}
}

// Fingerprint streams src through SHA-256. It never fails: any open or read
// error degrades to the weak name_size key and is logged.
func (h *Hasher) Fingerprint(src Source) Fingerprint {
	sum, err := hashSource(src)
	if err == nil {
		return Fingerprint{Value: sum}
	}

	weak := WeakFingerprint(src)
	h.logger.Warn("Content hashing failed, using weak fingerprint",
		"file", src.Name(),
		"size", src.Size(),
		"fingerprint", weak.Value,
		"error", err.Error())
	return weak
}

// WeakFingerprint is the name_size fallback key
func WeakFingerprint(src Source) Fingerprint {
	return Fingerprint{Value: fmt.Sprintf("%s_%d", src.Name(), src.Size()), Weak: true}
}

func hashSource(src Source) (string, error) {
	rc, err := src.Open()
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer func() { _ = rc.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
