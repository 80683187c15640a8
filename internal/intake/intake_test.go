package intake

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumerank/internal/errors"
)

// brokenSource reports a size but fails to open
type brokenSource struct {
	name string
	size int64
}

func (b brokenSource) Name() string { return b.name }
func (b brokenSource) Size() int64  { return b.size }
func (b brokenSource) Open() (io.ReadCloser, error) {
	return nil, fmt.Errorf("permission denied")
}

func TestHasher_Fingerprint(t *testing.T) {
	h := NewHasher(nil)

	data := []byte("%PDF-1.7 resume of Jane Doe")
	sum := sha256.Sum256(data)

	fp := h.Fingerprint(NewBytesSource("jane.pdf", data))
	assert.Equal(t, hex.EncodeToString(sum[:]), fp.Value)
	assert.False(t, fp.Weak)

	// identical bytes under a different name hash identically
	renamed := h.Fingerprint(NewBytesSource("copy-of-jane.pdf", data))
	assert.Equal(t, fp, renamed)

	other := h.Fingerprint(NewBytesSource("jane.pdf", []byte("different")))
	assert.NotEqual(t, fp.Value, other.Value)
}

func TestHasher_FallbackIsLogged(t *testing.T) {
	var buf bytes.Buffer
	h := NewHasher(errors.NewLoggerTo(&buf, 0))

	fp := h.Fingerprint(brokenSource{name: "scan.png", size: 2048})
	assert.Equal(t, Fingerprint{Value: "scan.png_2048", Weak: true}, fp)
	assert.Contains(t, buf.String(), "weak fingerprint")
	assert.Contains(t, buf.String(), "scan.png_2048")
}

func TestHasher_FileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cv.pdf")
	require.NoError(t, os.WriteFile(path, []byte("file body"), 0600))

	src, err := NewFileSource(path)
	require.NoError(t, err)
	assert.Equal(t, "cv.pdf", src.Name())
	assert.Equal(t, int64(9), src.Size())

	fp := NewHasher(nil).Fingerprint(src)
	mem := NewHasher(nil).Fingerprint(NewBytesSource("cv.pdf", []byte("file body")))
	assert.Equal(t, mem, fp)

	_, err = NewFileSource(dir)
	assert.Error(t, err)
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(0, nil)

	tests := []struct {
		name     string
		src      Source
		wantCode string
	}{
		{"pdf accepted", NewBytesSource("a.pdf", []byte("x")), ""},
		{"uppercase extension accepted", NewBytesSource("A.JPG", []byte("x")), ""},
		{"exactly at limit", brokenSource{name: "big.pdf", size: DefaultMaxFileSize}, ""},
		{"over limit", brokenSource{name: "big.pdf", size: DefaultMaxFileSize + 1}, errors.ErrCodeFileTooLarge},
		{"docx rejected", NewBytesSource("cv.docx", []byte("x")), errors.ErrCodeUnsupportedFileType},
		{"no extension", NewBytesSource("resume", []byte("x")), errors.ErrCodeUnsupportedFileType},
		{"size checked before type", brokenSource{name: "big.exe", size: DefaultMaxFileSize + 1}, errors.ErrCodeFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.src)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestValidator_CustomAllowList(t *testing.T) {
	v := NewValidator(10, []string{".PDF"})
	assert.Equal(t, []string{"pdf"}, v.Allowed())
	assert.NoError(t, v.Validate(NewBytesSource("x.pdf", []byte("123"))))
	assert.Error(t, v.Validate(NewBytesSource("x.png", []byte("123"))))

	err := v.Validate(NewBytesSource("x.pdf", []byte(strings.Repeat("a", 11))))
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileTooLarge))
}
