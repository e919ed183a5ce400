package faceclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"time"

	"github.com/go-resty/resty/v2"
)

// URLResolver turns an object-storage key into a URL the face service can fetch.
type URLResolver interface {
	DownloadURL(ctx context.Context, key string) (string, error)
}

// ServiceCompareResult is the face microservice's /compare response.
// Similarity is on a 0..1 scale.
type ServiceCompareResult struct {
	Similarity float64 `json:"similarity"`
	Match      bool    `json:"match"`
	Threshold  float64 `json:"threshold"`
}

// serviceReply mirrors ServiceCompareResult with required fields as pointers
// so a missing field is told apart from a zero score.
type serviceReply struct {
	Similarity *float64 `json:"similarity"`
	Match      *bool    `json:"match"`
	Threshold  float64  `json:"threshold"`
}

// Client calls the face recognition microservice.
type Client struct {
	BaseURL  string
	http     *resty.Client
	resolver URLResolver
}

// New creates a client; face processing can take time so the timeout is generous.
func New(baseURL string, resolver URLResolver) *Client {
	return &Client{
		BaseURL:  baseURL,
		resolver: resolver,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

// Compare compares two face images by URL.
func (c *Client) Compare(ctx context.Context, imageURL1, imageURL2 string) (*ServiceCompareResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"image_url_1": imageURL1,
			"image_url_2": imageURL2,
		}).
		Post("/compare")
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("face service error %s: %s", resp.Status(), resp.String())
	}
	return decodeCompare(resp)
}

func decodeCompare(resp *resty.Response) (*ServiceCompareResult, error) {
	ct := resp.Header().Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
		return nil, fmt.Errorf("face service returned %q instead of JSON", ct)
	}
	var reply serviceReply
	if err := json.Unmarshal(resp.Body(), &reply); err != nil {
		return nil, fmt.Errorf("face service reply: %w", err)
	}
	if reply.Similarity == nil || reply.Match == nil {
		return nil, errors.New("face service reply: missing similarity or match")
	}
	return &ServiceCompareResult{
		Similarity: *reply.Similarity,
		Match:      *reply.Match,
		Threshold:  reply.Threshold,
	}, nil
}

// CompareFaces resolves both keys to URLs and asks the service to compare them.
func (c *Client) CompareFaces(ctx context.Context, sourceKey, targetKey string, threshold float64) (*CompareResult, error) {
	if c.resolver == nil {
		return nil, fmt.Errorf("face service: no url resolver configured")
	}
	sourceURL, err := c.resolver.DownloadURL(ctx, sourceKey)
	if err != nil {
		return nil, fmt.Errorf("resolve source image: %w", err)
	}
	targetURL, err := c.resolver.DownloadURL(ctx, targetKey)
	if err != nil {
		return nil, fmt.Errorf("resolve target image: %w", err)
	}

	out, err := c.Compare(ctx, sourceURL, targetURL)
	if err != nil {
		return nil, err
	}

	sim := out.Similarity * 100
	if sim >= threshold {
		return &CompareResult{Matches: []Match{{Similarity: sim}}}, nil
	}
	return &CompareResult{UnmatchedFaces: 1}, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("face service unhealthy: %s", resp.Status())
	}
	return nil
}
