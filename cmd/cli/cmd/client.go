package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"specplane/pkg/api"
)

// FeedClient handles API calls to the dashd service.
type FeedClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewFeedClient creates a new client for the given dashboard URL.
func NewFeedClient(baseURL string) *FeedClient {
	return &FeedClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// FeedFilter narrows the submission feed. Tile -1 means unrestricted;
// zero values elsewhere mean no constraint.
type FeedFilter struct {
	Night  int64
	Tile   int64
	State  string
	Limit  int
	Offset int
}

// GetFeed sends GET /api/feed to retrieve recent submissions.
func (c *FeedClient) GetFeed(filter FeedFilter) ([]api.SubmissionResponse, error) {
	params := url.Values{}
	if filter.Night > 0 {
		params.Set("night", strconv.FormatInt(filter.Night, 10))
	}
	if filter.Tile >= 0 {
		params.Set("tile", strconv.FormatInt(filter.Tile, 10))
	}
	if filter.State != "" {
		params.Set("state", filter.State)
	}
	if filter.Limit > 0 {
		params.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		params.Set("offset", strconv.Itoa(filter.Offset))
	}

	endpoint := fmt.Sprintf("%s/api/feed", c.BaseURL)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	httpReq, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.FeedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return result.Submissions, nil
}

// GetSubmission sends GET /api/submissions/{id} to retrieve one
// submission.
func (c *FeedClient) GetSubmission(id string) (*api.SubmissionResponse, error) {
	httpReq, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/submissions/%s", c.BaseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.SubmissionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}

// GetNights sends GET /api/nights to retrieve per-night submission
// rollups.
func (c *FeedClient) GetNights(limit int) ([]api.NightSummaryResponse, error) {
	endpoint := fmt.Sprintf("%s/api/nights", c.BaseURL)
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}

	httpReq, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result api.NightsResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return result.Nights, nil
}
