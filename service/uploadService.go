package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gojektech/heimdall/v6"
	"github.com/gojektech/heimdall/v6/httpclient"

	"github.com/gatherly/gatherly/apperr"
	"github.com/gatherly/gatherly/helpers"
)

// Uploader pushes event images to the hosting collaborator and returns
// the hosted URL to persist.
type Uploader interface {
	Upload(image string) (string, error)
}

// UploadService talks to the image-hosting HTTP API. Construct with
// NewUploadService; an empty endpoint yields a pass-through uploader so
// local setups work without hosting credentials.
type UploadService struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
}

func NewUploadService(endpoint, apiKey string) *UploadService {
	backoff := heimdall.NewConstantBackoff(500*time.Millisecond, 50*time.Millisecond)

	client := httpclient.NewClient(
		httpclient.WithHTTPTimeout(30*time.Second),
		httpclient.WithRetrier(heimdall.NewRetrier(backoff)),
		httpclient.WithRetryCount(2),
		httpclient.WithHTTPClient(&http.Client{
			Transport: helpers.NewTransportWithLogger(http.DefaultTransport),
			Timeout:   30 * time.Second,
		}),
	)

	return &UploadService{
		client:   client,
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

type uploadRequest struct {
	Image  string `json:"image"`
	Folder string `json:"folder"`
}

type uploadResponse struct {
	SecureURL string `json:"secureUrl"`
}

func (s *UploadService) Upload(image string) (string, error) {
	if s.endpoint == "" {
		return image, nil
	}

	body, err := json.Marshal(uploadRequest{Image: image, Folder: "events"})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperr.Dependency("Image upload failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Dependency("Image upload failed", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", apperr.Dependency("Image upload failed", fmt.Errorf("image host returned %d", resp.StatusCode))
	}

	var parsed uploadResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", apperr.Dependency("Image upload failed", err)
	}
	if parsed.SecureURL == "" {
		return "", apperr.Dependency("Image upload failed", fmt.Errorf("image host returned no url"))
	}

	return parsed.SecureURL, nil
}
