// Package googlebooks is a small client for the Google Books volumes API.
package googlebooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bookshelf/internal/library"

	"golang.org/x/time/rate"
)

var ErrNotFound = errors.New("volume not found")

const (
	unknownAuthor  = "Auteur inconnu"
	noDescription  = "Pas de description disponible."
	defaultTimeout = 15 * time.Second
)

type Options struct {
	BaseURL    string
	APIKey     string
	Language   string
	MaxResults int
	RPS        int
	MaxRetries int
	HTTPClient *http.Client
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	language   string
	maxResults int
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = 1
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		language:   opts.Language,
		maxResults: maxResults,
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
		maxRetries: opts.MaxRetries,
		backoff:    time.Second,
	}
}

type industryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type volumeInfo struct {
	Title               string               `json:"title"`
	Authors             []string             `json:"authors"`
	Description         string               `json:"description"`
	Publisher           string               `json:"publisher"`
	PublishedDate       string               `json:"publishedDate"`
	PageCount           int                  `json:"pageCount"`
	Categories          []string             `json:"categories"`
	IndustryIdentifiers []industryIdentifier `json:"industryIdentifiers"`
	ImageLinks          struct {
		Thumbnail string `json:"thumbnail"`
	} `json:"imageLinks"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

// Search returns the books matching query. An empty query returns no books
// without calling the API.
func (c *Client) Search(ctx context.Context, query string) ([]library.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []library.Book{}, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(c.maxResults))
	if c.language != "" {
		params.Set("langRestrict", c.language)
	}

	var res volumesResponse
	if err := c.get(ctx, c.baseURL+"/volumes", params, &res); err != nil {
		return nil, err
	}

	books := make([]library.Book, 0, len(res.Items))
	for _, v := range res.Items {
		if v.ID == "" {
			continue
		}
		books = append(books, toBook(v))
	}
	return books, nil
}

// GetByID fetches a single volume. It returns ErrNotFound when the API does
// not know id.
func (c *Client) GetByID(ctx context.Context, id string) (library.Book, error) {
	if strings.TrimSpace(id) == "" {
		return library.Book{}, ErrNotFound
	}

	var v volume
	if err := c.get(ctx, c.baseURL+"/volumes/"+url.PathEscape(id), url.Values{}, &v); err != nil {
		return library.Book{}, err
	}
	if v.ID == "" {
		return library.Book{}, ErrNotFound
	}
	return toBook(v), nil
}

func toBook(v volume) library.Book {
	info := v.VolumeInfo
	b := library.Book{
		ID:            v.ID,
		Title:         info.Title,
		Authors:       info.Authors,
		Description:   info.Description,
		Thumbnail:     strings.Replace(info.ImageLinks.Thumbnail, "http:", "https:", 1),
		ISBN:          isbn(info.IndustryIdentifiers),
		PublishedDate: info.PublishedDate,
		PageCount:     info.PageCount,
		Categories:    info.Categories,
		Publisher:     info.Publisher,
	}
	if len(b.Authors) == 0 {
		b.Authors = []string{unknownAuthor}
	}
	if b.Description == "" {
		b.Description = noDescription
	}
	return b
}

// isbn prefers ISBN_13 and falls back to the first identifier.
func isbn(ids []industryIdentifier) string {
	for _, id := range ids {
		if id.Type == "ISBN_13" {
			return id.Identifier
		}
	}
	if len(ids) > 0 {
		return ids[0].Identifier
	}
	return ""
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, target any) error {
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	u := endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			// 1x, 2x, 4x the base backoff
			wait := c.backoff * time.Duration(1<<uint(i-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retry, err := c.do(ctx, u, target)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) do(ctx context.Context, u string, target any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}
