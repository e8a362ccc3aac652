package uolmais

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/virgula/mediasync/pkg/mediasync"
)

const defaultBaseURL = "https://api.mais.uol.com.br/v1"

// Client is the HTTP implementation of the API interface.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// ClientOption configures the HTTP client.
type ClientOption func(*Client)

// WithBaseURL overrides the UOLMais API endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates an HTTP client for the UOLMais API.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Authenticate(ctx context.Context, username, password string) error {
	// sessions are cached per client; re-authentication is a no-op
	if c.token != "" {
		return nil
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(req, &out); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	c.token = out.Token
	return nil
}

func (c *Client) UploadVideo(ctx context.Context, sub Submission) (string, error) {
	return c.upload(ctx, "/videos", sub)
}

func (c *Client) UploadAudio(ctx context.Context, sub Submission) (string, error) {
	return c.upload(ctx, "/audios", sub)
}

func (c *Client) upload(ctx context.Context, path string, sub Submission) (string, error) {
	file, err := os.Open(sub.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to open media file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		defer mw.Close()

		fields := map[string]string{
			"pub_date":    sub.PublishedAt.Format(time.RFC3339),
			"title":       sub.Title,
			"description": sub.Description,
			"tags":        sub.Tags,
			"visibility":  sub.Visibility,
			"comments":    sub.Comments,
			"is_hot":      strconv.FormatBool(sub.Hot),
		}
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				pw.CloseWithError(err)
				return
			}
		}

		part, err := mw.CreateFormFile("f", file.Name())
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		MediaID string `json:"media_id"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.MediaID, nil
}

func (c *Client) PrivateInfo(ctx context.Context, mediaID string) (*RawInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/medias/"+url.PathEscape(mediaID)+"/private", nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Status            int    `json:"status"`
		StatusDescription string `json:"status_description"`
		Title             string `json:"title"`
		Description       string `json:"description"`
		ThumbLarge        string `json:"thumbLarge"`
		Tags              string `json:"tags"`
		EmbedCode         string `json:"embedCode"`
		URL               string `json:"url"`
		MediaType         string `json:"mediaType"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}

	return &RawInfo{
		Status:            out.Status,
		StatusDescription: out.StatusDescription,
		Title:             out.Title,
		Description:       out.Description,
		ThumbLarge:        out.ThumbLarge,
		Tags:              out.Tags,
		EmbedCode:         out.EmbedCode,
		URL:               out.URL,
		MediaType:         out.MediaType,
	}, nil
}

func (c *Client) Remove(ctx context.Context, mediaID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/medias/"+url.PathEscape(mediaID), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
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
		return fmt.Errorf("uolmais api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode uolmais response: %w", err)
	}
	return nil
}

// isNotFound reports whether a wire error means the media does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, mediasync.ErrRemoteNotFound)
}
