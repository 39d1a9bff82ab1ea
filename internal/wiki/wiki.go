// Package wiki publishes generated reports to a wiki page.
package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxResponseBytes bounds how much of a response body is decoded.
const maxResponseBytes = 10 << 20

var (
	// ErrNotConfigured is returned by Connect when no wiki URL is set.
	ErrNotConfigured = errors.New("wiki URL not configured")
	// ErrPageNotFound is returned when the target page does not exist.
	ErrPageNotFound = errors.New("wiki page not found")
)

// Session replaces the content of existing wiki pages.
type Session interface {
	ReplacePageContent(ctx context.Context, space, page, content string) error
}

// Config holds connection settings for a Confluence server.
type Config struct {
	URL   string
	User  string
	Token string
}

type (
	// StatusError reports an unexpected HTTP status from the wiki.
	StatusError struct {
		Method string
		URL    string
		Status int
		Body   string
	}

	// Confluence talks to the Confluence REST API.
	Confluence struct {
		httpClient *http.Client
		baseURL    string
		user       string
		token      string
	}

	// Option configures a Confluence session.
	Option func(*Confluence)

	contentPage struct {
		ID      string         `json:"id"`
		Type    string         `json:"type"`
		Title   string         `json:"title"`
		Space   *contentSpace  `json:"space,omitempty"`
		Version contentVersion `json:"version"`
		Body    *contentBody   `json:"body,omitempty"`
	}

	contentSpace struct {
		Key string `json:"key"`
	}

	contentVersion struct {
		Number int `json:"number"`
	}

	contentBody struct {
		Storage contentStorage `json:"storage"`
	}

	contentStorage struct {
		Value          string `json:"value"`
		Representation string `json:"representation"`
	}

	searchResult struct {
		Results []contentPage `json:"results"`
	}
)

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Status, body)
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Confluence) {
		s.httpClient = c
	}
}

// Connect returns a session for cfg. No request is made until the first call.
func Connect(cfg Config, opts ...Option) (*Confluence, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}
	s := &Confluence{
		httpClient: http.DefaultClient,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		user:       cfg.User,
		token:      cfg.Token,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ReplacePageContent overwrites the body of the page titled page in space,
// bumping its version by one.
func (s *Confluence) ReplacePageContent(ctx context.Context, space, page, content string) error {
	current, err := s.findPage(ctx, space, page)
	if err != nil {
		return err
	}

	update := contentPage{
		ID:      current.ID,
		Type:    current.Type,
		Title:   current.Title,
		Space:   &contentSpace{Key: space},
		Version: contentVersion{Number: current.Version.Number + 1},
		Body: &contentBody{Storage: contentStorage{
			Value:          content,
			Representation: "storage",
		}},
	}
	if update.Type == "" {
		update.Type = "page"
	}

	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encoding page update: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPut, s.baseURL+"/rest/api/content/"+url.PathEscape(current.ID), payload)
	if err != nil {
		return fmt.Errorf("updating page %q: %w", page, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return nil
}

func (s *Confluence) findPage(ctx context.Context, space, page string) (*contentPage, error) {
	q := url.Values{}
	q.Set("spaceKey", space)
	q.Set("title", page)
	q.Set("expand", "version")

	resp, err := s.do(ctx, http.MethodGet, s.baseURL+"/rest/api/content?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("looking up page %q: %w", page, err)
	}
	defer resp.Body.Close()

	var found searchResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&found); err != nil {
		return nil, fmt.Errorf("decoding page lookup: %w", err)
	}
	if len(found.Results) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", space, page, ErrPageNotFound)
	}
	return &found.Results[0], nil
}

// do sends one request and returns the response when its status is 2xx.
func (s *Confluence) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.user != "" || s.token != "" {
		req.SetBasicAuth(s.user, s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{Method: method, URL: target, Status: resp.StatusCode, Body: string(data)}
	}
	return resp, nil
}
