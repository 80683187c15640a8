package intake

import (
	"fmt"
	"strings"

	"resumerank/internal/errors"
	"resumerank/internal/utils"
)

// Defaults for the intake limits
const (
	DefaultMaxFileSize int64 = 5 * 1024 * 1024
)

// DefaultAllowedExtensions lists the accepted resume formats
var DefaultAllowedExtensions = []string{"pdf", "png", "jpg", "jpeg", "gif", "bmp"}

// Validator enforces the size limit and extension allow-list
type Validator struct {
	maxSize int64
	allowed []string
}

// NewValidator builds a validator; zero or empty arguments select the defaults
func NewValidator(maxSize int64, allowed []string) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if len(allowed) == 0 {
		allowed = DefaultAllowedExtensions
	}
	normalized := make([]string, 0, len(allowed))
	for _, ext := range allowed {
		normalized = append(normalized, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	return &Validator{maxSize: maxSize, allowed: normalized}
}

func (v *Validator) MaxSize() int64 { return v.maxSize }

func (v *Validator) Allowed() []string { return v.allowed }

// Validate returns nil for an acceptable source, otherwise an AppError with
// FILE_TOO_LARGE or UNSUPPORTED_FILE_TYPE. Size is checked first.
func (v *Validator) Validate(src Source) error {
	if src.Size() > v.maxSize {
		return errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("%s exceeds the %s limit", src.Name(), utils.FormatFileSize(v.maxSize)), nil).
			WithContext("file", src.Name()).
			WithContext("size", src.Size())
	}

	if !utils.HasAllowedExtension(src.Name(), v.allowed) {
		return errors.NewValidationError(errors.ErrCodeUnsupportedFileType,
			fmt.Sprintf("%s is not a supported type (allowed: %s)", src.Name(), strings.Join(v.allowed, ", ")), nil).
			WithContext("file", src.Name())
	}

	return nil
}
