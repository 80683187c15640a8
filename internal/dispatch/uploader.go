package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"

	"resumerank/internal/errors"
	"resumerank/internal/intake"
	"resumerank/internal/types"
)

// Generic failure messages shown when the server gives no reason
const (
	msgUploadFailed  = "Upload failed"
	msgNetworkError  = "Network error"
	msgUploadTimeout = "Upload timed out"
	msgBadResponse   = "Invalid response from analysis service"
)

// maxResponseSize bounds how much of a response body is read
const maxResponseSize = 10 * 1024 * 1024

// UploadRequest is one file plus the shared form fields
type UploadRequest struct {
	ItemID         string
	Source         intake.Source
	JobDescription string
	// Progress receives the percentage of the file sent so far
	Progress func(pct int)
}

// Uploader sends a single file to the analysis service. Errors are
// AppErrors whose Message is suitable for display on the item.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (*types.AnalyzeResponse, error)
}

// HTTPUploaderConfig configures HTTPUploader
type HTTPUploaderConfig struct {
	Endpoint  string
	APIKey    string
	FileField string
	JobField  string
	Client    *http.Client
	Breaker   *EndpointBreaker
}

// HTTPUploader posts multipart/form-data to the analysis endpoint
type HTTPUploader struct {
	endpoint  string
	apiKey    string
	fileField string
	jobField  string
	client    *http.Client
	breaker   *EndpointBreaker
}

func NewHTTPUploader(cfg HTTPUploaderConfig) *HTTPUploader {
	if cfg.FileField == "" {
		cfg.FileField = "resumes"
	}
	if cfg.JobField == "" {
		cfg.JobField = "job_description"
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &HTTPUploader{
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		fileField: cfg.FileField,
		jobField:  cfg.JobField,
		client:    cfg.Client,
		breaker:   cfg.Breaker,
	}
}

// Breaker exposes the endpoint breaker for health reporting
func (u *HTTPUploader) Breaker() *EndpointBreaker { return u.breaker }

func (u *HTTPUploader) Upload(ctx context.Context, req UploadRequest) (*types.AnalyzeResponse, error) {
	return u.breaker.Execute(func() (*types.AnalyzeResponse, error) {
		return u.do(ctx, req)
	})
}

func (u *HTTPUploader) do(ctx context.Context, req UploadRequest) (*types.AnalyzeResponse, error) {
	body, contentType := u.streamBody(req)
	defer func() { _ = body.Close() }()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, msgUploadFailed, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if u.apiKey != "" {
		httpReq.Header.Set("X-API-Key", u.apiKey)
	}

	resp, err := u.client.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, rejectedError(resp.StatusCode, raw)
	}

	var parsed types.AnalyzeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.NewServerError(errors.ErrCodeMalformedResponse, msgBadResponse, err).
			WithContext("status", resp.StatusCode)
	}
	return &parsed, nil
}

// streamBody writes the multipart form through a pipe so the file is never
// buffered whole in memory
func (u *HTTPUploader) streamBody(req UploadRequest) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeForm(mw, u.fileField, u.jobField, req)
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}

func writeForm(mw *multipart.Writer, fileField, jobField string, req UploadRequest) error {
	if err := mw.WriteField(jobField, req.JobDescription); err != nil {
		return err
	}

	part, err := mw.CreateFormFile(fileField, req.Source.Name())
	if err != nil {
		return err
	}

	rc, err := req.Source.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", req.Source.Name(), err)
	}
	defer func() { _ = rc.Close() }()

	_, err = io.Copy(part, &progressReader{r: rc, total: req.Source.Size(), report: req.Progress})
	return err
}

// progressReader reports whole-percent changes as bytes flow through it
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(pct int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.report != nil && p.total > 0 {
		pct := int(p.read * 100 / p.total)
		// the file being fully sent is not completion; 100 is reserved for done
		pct = min(pct, 99)
		if pct != p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}

func transportError(ctx context.Context, err error) error {
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.NewNetworkError(errors.ErrCodeNetworkTimeout, msgUploadTimeout, err)
	}
	return errors.NewNetworkError(errors.ErrCodeUploadTransport, msgNetworkError, err)
}

// rejectedError builds the failure for a non-2xx reply, preferring the
// server's own error or message field
func rejectedError(status int, body []byte) error {
	msg := msgUploadFailed
	var er types.ErrorResponse
	if json.Unmarshal(bytes.TrimSpace(body), &er) == nil {
		switch {
		case strings.TrimSpace(er.Error) != "":
			msg = strings.TrimSpace(er.Error)
		case strings.TrimSpace(er.Message) != "":
			msg = strings.TrimSpace(er.Message)
		}
	}

	return errors.NewServerError(errors.ErrCodeUploadRejected, msg, fmt.Errorf("status %d", status)).
		WithContext("status", status)
}

// isClientRejection reports a 4xx rejection: the endpoint answered, so it is
// not a breaker failure
func isClientRejection(err error) bool {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) || appErr.Code != errors.ErrCodeUploadRejected {
		return false
	}
	status, ok := appErr.Context["status"].(int)
	return ok && status < 500
}
