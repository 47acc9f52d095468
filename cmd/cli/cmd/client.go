package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docplain/pkg/api"
)

// Client handles API calls to the docplain controller.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new client with the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
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

func (c *Client) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// EnqueueJob sends POST /v1/jobs to enqueue a document.
func (c *Client) EnqueueJob(req api.EnqueueJobRequest) (*api.EnqueueJobResponse, error) {
	var result api.EnqueueJobResponse
	if err := c.do(http.MethodPost, "/v1/jobs", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJob sends GET /v1/jobs/{id} to retrieve job details.
func (c *Client) GetJob(jobID string) (*api.JobResponse, error) {
	var result api.JobResponse
	if err := c.do(http.MethodGet, "/v1/jobs/"+jobID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelJob sends POST /v1/jobs/{id}/cancel.
func (c *Client) CancelJob(jobID string) error {
	return c.do(http.MethodPost, "/v1/jobs/"+jobID+"/cancel", nil, nil)
}

// ListExecutions sends GET /v1/jobs/{id}/executions.
func (c *Client) ListExecutions(jobID string) ([]api.StepExecutionResponse, error) {
	var result []api.StepExecutionResponse
	if err := c.do(http.MethodGet, "/v1/jobs/"+jobID+"/executions", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListSteps sends GET /v1/steps.
func (c *Client) ListSteps() ([]api.PipelineStepResponse, error) {
	var result []api.PipelineStepResponse
	if err := c.do(http.MethodGet, "/v1/steps", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SetStepEnabled sends POST /v1/steps/{id}/enabled.
func (c *Client) SetStepEnabled(stepID string, enabled bool) error {
	return c.do(http.MethodPost, "/v1/steps/"+stepID+"/enabled", api.SetStepEnabledRequest{Enabled: enabled}, nil)
}
