package service

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"radiowalk/backend/services/stations-service/internal/models"
)

const streamUserAgent = "RadioWalk/1.0"

var audioContentTypes = []string{"audio/", "application/ogg", "video/mp2t"}

// StreamCheck is the outcome of probing a stream URL.
type StreamCheck struct {
	Valid         bool   `json:"valid"`
	ContentType   string `json:"contentType,omitempty"`
	IsAudioStream bool   `json:"isAudioStream"`
	Status        int    `json:"status,omitempty"`
	StatusText    string `json:"statusText"`
}

// StreamValidator checks stream URLs with a HEAD request.
type StreamValidator struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewStreamValidator returns a validator aborting each check after timeout.
func NewStreamValidator(client *http.Client, timeout time.Duration, logger *zap.Logger) *StreamValidator {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StreamValidator{client: client, timeout: timeout, logger: logger}
}

// Validate checks rawURL. Only a malformed URL is an error; unreachable streams are reported
// as Valid=false with the failure in StatusText.
func (v *StreamValidator) Validate(ctx context.Context, rawURL string) (*StreamCheck, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := models.ValidateVar("url", rawURL, "required,url"); err != nil {
		return nil, err
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, models.NewValidationError("url must be an http or https URL")
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, models.NewValidationError("url is invalid: %v", err)
	}
	req.Header.Set("User-Agent", streamUserAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Debug("stream check failed", zap.String("url", rawURL), zap.Error(err))
		return &StreamCheck{Valid: false, StatusText: err.Error()}, nil
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	return &StreamCheck{
		Valid:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		ContentType:   contentType,
		IsAudioStream: isAudioContentType(contentType),
		Status:        resp.StatusCode,
		StatusText:    http.StatusText(resp.StatusCode),
	}, nil
}

func isAudioContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	for _, prefix := range audioContentTypes {
		if strings.Contains(contentType, prefix) {
			return true
		}
	}
	return false
}
