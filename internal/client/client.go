// Package client talks to a filegate server over its form-based HTTP API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GateHeaders are the handshake values sent with every request.
type GateHeaders struct {
	Name       string
	Connection string
	Models     string
	Version    string
}

func (g GateHeaders) apply(h http.Header) {
	h.Set("Name", g.Name)
	h.Set("Connection", g.Connection)
	h.Set("Models", g.Models)
	h.Set("Version", g.Version)
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type UploadResult struct {
	Status  string `json:"status"`
	FileKey string `json:"file_key"`
	FileID  string `json:"file_id"`
	URL     string `json:"url"`
}

type KeyInfo struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	IPAddress string    `json:"ip_address"`
}

type Stats struct {
	TotalKeys        int64  `json:"total_keys"`
	ActiveKeys       int64  `json:"active_keys"`
	TotalFiles       int64  `json:"total_files"`
	ActiveFiles      int64  `json:"active_files"`
	ActiveBytes      int64  `json:"active_bytes"`
	ActiveBytesHuman string `json:"active_bytes_human"`
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	gate    GateHeaders
	http    *http.Client
}

// New creates a client for the server at baseURL. A nil httpClient uses
// http.DefaultClient.
func New(baseURL string, gate GateHeaders, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		gate:    gate,
		http:    httpClient,
	}
}

// IssueKey requests a new access key.
func (c *Client) IssueKey(ctx context.Context) (string, error) {
	var resp struct {
		Key string `json:"key"`
	}
	if err := c.postForm(ctx, "/key", url.Values{}, &resp); err != nil {
		return "", err
	}
	return resp.Key, nil
}

// Upload streams body to the server under filename, owned by key.
func (c *Client) Upload(ctx context.Context, key, filename string, body io.Reader) (*UploadResult, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		err := writeUploadForm(form, key, filename, body)
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var result UploadResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func writeUploadForm(form *multipart.Writer, key, filename string, body io.Reader) error {
	if err := form.WriteField("key", key); err != nil {
		return err
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	return form.Close()
}

// Get resolves a file key to its blob id.
func (c *Client) Get(ctx context.Context, fileKey string) (string, error) {
	var resp struct {
		BlobID string `json:"blob_id"`
	}
	if err := c.postForm(ctx, "/get", url.Values{"key": {fileKey}}, &resp); err != nil {
		return "", err
	}
	return resp.BlobID, nil
}

// Check lists active access keys.
func (c *Client) Check(ctx context.Context, password string) ([]KeyInfo, error) {
	var resp struct {
		Keys []KeyInfo `json:"keys"`
	}
	if err := c.postForm(ctx, "/check", url.Values{"Password": {password}}, &resp); err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// DeleteKey revokes key and all of its files.
func (c *Client) DeleteKey(ctx context.Context, key, password string) error {
	return c.postForm(ctx, "/delete", url.Values{
		"key":      {key},
		"password": {password},
	}, nil)
}

// DeleteFile revokes one file owned by key.
func (c *Client) DeleteFile(ctx context.Context, key, fileKey, password string) error {
	return c.postForm(ctx, "/delete-file", url.Values{
		"key":      {key},
		"file_key": {fileKey},
		"password": {password},
	}, nil)
}

// Stats returns aggregate server statistics.
func (c *Client) Stats(ctx context.Context, password string) (*Stats, error) {
	var stats Stats
	if err := c.postForm(ctx, "/stats", url.Values{"password": {password}}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	c.gate.apply(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
