package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"resumerank/internal/errors"
	"resumerank/internal/intake"
	"resumerank/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger *errors.Logger
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger) *FileProcessor {
	if logger == nil {
		logger = errors.Discard()
	}
	return &FileProcessor{logger: logger}
}

// ReadFile reads content from a file. A positive maxSize rejects larger files.
func (fp *FileProcessor) ReadFile(filename string, maxSize int64) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	var r io.Reader = file
	if maxSize > 0 {
		r = io.LimitReader(file, maxSize+1)
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}
	if maxSize > 0 && int64(len(content)) > maxSize {
		return "", errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("File %s exceeds %s", filename, utils.FormatFileSize(maxSize)), nil)
	}

	return string(content), nil
}

// ReadJobDescription reads the job description file, or stdin for "-"
func (fp *FileProcessor) ReadJobDescription(path string, maxSize int64) (string, error) {
	if path == "" {
		return "", errors.NewValidationError(errors.ErrCodeMissingJobDescription,
			"Please enter a job description", nil)
	}

	var content string
	if path == "-" {
		var r io.Reader = os.Stdin
		if maxSize > 0 {
			r = io.LimitReader(os.Stdin, maxSize+1)
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", errors.NewIOError(errors.ErrCodeFileNotReadable, "Cannot read job description from stdin", err)
		}
		if maxSize > 0 && int64(len(raw)) > maxSize {
			return "", errors.NewValidationError(errors.ErrCodeFileTooLarge,
				fmt.Sprintf("Job description exceeds %s", utils.FormatFileSize(maxSize)), nil)
		}
		content = string(raw)
	} else {
		if err := utils.ValidateInputFile(path); err != nil {
			return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("Invalid job description file %s", path), err)
		}
		var err error
		if content, err = fp.ReadFile(path, maxSize); err != nil {
			return "", err
		}
	}

	if strings.TrimSpace(content) == "" {
		return "", errors.NewValidationError(errors.ErrCodeMissingJobDescription,
			"Please enter a job description", nil)
	}
	return content, nil
}

// CollectSources turns file and directory arguments into upload sources.
// Directories contribute their regular, non-hidden files, sorted by name;
// subdirectories are not descended into.
func (fp *FileProcessor) CollectSources(paths ...string) ([]intake.Source, error) {
	var sources []intake.Source

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
					fmt.Sprintf("File not found: %s", path), err)
			}
			return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
				fmt.Sprintf("Cannot access: %s", path), err)
		}

		if !info.IsDir() {
			src, err := fp.fileSource(path)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
			continue
		}

		dirSources, err := fp.scanDirectory(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, dirSources...)
	}

	return sources, nil
}

func (fp *FileProcessor) scanDirectory(dir string) ([]intake.Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read directory: %s", dir), err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || utils.IsHiddenFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	sources := make([]intake.Source, 0, len(names))
	for _, name := range names {
		src, err := fp.fileSource(filepath.Join(dir, name))
		if err != nil {
			// the file may have vanished between listing and stat
			fp.logger.Warn("Skipping unreadable file", "filename", name, "error", err)
			continue
		}
		sources = append(sources, src)
	}

	fp.logger.Debug("Scanned directory", "dir", dir, "files", len(sources))
	return sources, nil
}

func (fp *FileProcessor) fileSource(path string) (intake.Source, error) {
	src, err := intake.NewFileSource(path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", path), err)
	}
	return src, nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		err := os.MkdirAll(dir, 0750)
		if err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	err := os.WriteFile(filename, []byte(content), 0600)
	if err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}
