package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/virgula/mediasync/pkg/mediasync"
)

const (
	defaultAuthURL   = "https://www.google.com/accounts/ClientLogin"
	defaultUploadURL = "https://uploads.gdata.youtube.com/feeds/api/users/default/uploads"
	defaultFeedURL   = "https://gdata.youtube.com/feeds/api/videos"
)

// Client is the HTTP implementation of the API interface.
type Client struct {
	authURL    string
	uploadURL  string
	feedURL    string
	httpClient *http.Client

	authToken    string
	developerKey string
}

// ClientOption configures the HTTP client.
type ClientOption func(*Client)

// WithEndpoints overrides the service endpoints.
func WithEndpoints(authURL, uploadURL, feedURL string) ClientOption {
	return func(c *Client) {
		c.authURL = authURL
		c.uploadURL = strings.TrimSuffix(uploadURL, "/")
		c.feedURL = strings.TrimSuffix(feedURL, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates an HTTP client for the YouTube upload API.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		authURL:    defaultAuthURL,
		uploadURL:  defaultUploadURL,
		feedURL:    defaultFeedURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Login(ctx context.Context, email, password, developerKey string) error {
	if c.authToken != "" {
		c.developerKey = developerKey
		return nil
	}

	form := url.Values{}
	form.Set("Email", email)
	form.Set("Passwd", password)
	form.Set("service", "youtube")
	form.Set("source", "mediasync")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: login answered 403", mediasync.ErrAuthUnconfirmed)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(body), "\n") {
		if token, ok := strings.CutPrefix(strings.TrimSpace(line), "Auth="); ok {
			c.authToken = token
		}
	}
	if c.authToken == "" {
		return fmt.Errorf("login response carried no auth token")
	}

	c.developerKey = developerKey
	return nil
}

func (c *Client) InsertVideo(ctx context.Context, sub Submission) (*VideoEntry, error) {
	file, err := os.Open(sub.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		defer mw.Close()

		meta := map[string]string{
			"title":       sub.Title,
			"description": sub.Description,
			"category":    sub.Category,
			"keywords":    sub.Keywords,
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := mw.WriteField("metadata", string(metaJSON)); err != nil {
			pw.CloseWithError(err)
			return
		}

		part, err := mw.CreateFormFile("video", file.Name())
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out wireEntry
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.toEntry(), nil
}

func (c *Client) GetVideo(ctx context.Context, videoID string) (*VideoEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.feedURL+"/"+url.PathEscape(videoID), nil)
	if err != nil {
		return nil, err
	}

	var out wireEntry
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.toEntry(), nil
}

func (c *Client) CheckUploadStatus(ctx context.Context, videoID string) (*UploadFault, error) {
	entry, err := c.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return entry.Fault, nil
}

type wireEntry struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	Keywords    string `json:"keywords"`
	EmbedCode   string `json:"embed_code"`
	PlayerURL   string `json:"player_url"`
	State       *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"state,omitempty"`
}

func (w *wireEntry) toEntry() *VideoEntry {
	entry := &VideoEntry{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Thumbnail:   w.Thumbnail,
		Keywords:    w.Keywords,
		EmbedCode:   w.EmbedCode,
		PlayerURL:   w.PlayerURL,
	}
	if w.State != nil {
		entry.Fault = &UploadFault{Name: w.State.Name, Message: w.State.Message}
	}
	return entry
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.authToken != "" {
		req.Header.Set("Authorization", "GoogleLogin auth="+c.authToken)
	}
	if c.developerKey != "" {
		req.Header.Set("X-GData-Key", "key="+c.developerKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return mediasync.ErrRemoteNotFound
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("youtube api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode youtube response: %w", err)
	}
	return nil
}
