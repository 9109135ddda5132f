// Package openlibrary reads the Open Library search and works APIs. The
// catalog uses it when Google Books has nothing to offer.
package openlibrary

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

var ErrNotFound = errors.New("work not found")

// IDPrefix marks book IDs that come from Open Library.
const IDPrefix = "OL:"

const coverURL = "https://covers.openlibrary.org/b/id/%d-M.jpg"

type Options struct {
	BaseURL    string
	UserAgent  string
	Limit      int
	RPS        int
	MaxRetries int
	HTTPClient *http.Client
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limit      int
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://openlibrary.org"
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	return &Client{
		httpClient: httpClient,
		userAgent:  opts.UserAgent,
		baseURL:    baseURL,
		limit:      limit,
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
		maxRetries: opts.MaxRetries,
		backoff:    time.Second,
	}
}

type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorNames      []string `json:"author_name"`
	ISBN             []string `json:"isbn"`
	FirstPublishYear int      `json:"first_publish_year"`
	CoverID          int      `json:"cover_i"`
	Publishers       []string `json:"publisher"`
	Subjects         []string `json:"subject"`
	Pages            int      `json:"number_of_pages_median"`
}

// text is a field Open Library serves either as a string or as
// {"type": "/type/text", "value": "..."}.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = text(s)
		return nil
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*t = text(obj.Value)
	return nil
}

type work struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	Description      text     `json:"description"`
	Covers           []int    `json:"covers"`
	Subjects         []string `json:"subjects"`
	FirstPublishDate string   `json:"first_publish_date"`
	Authors          []struct {
		Author struct {
			Key string `json:"key"`
		} `json:"author"`
	} `json:"authors"`
}

type author struct {
	Name string `json:"name"`
}

// Search runs a full-text search. An empty query returns no books without
// calling the API.
func (c *Client) Search(ctx context.Context, query string) ([]library.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []library.Book{}, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(c.limit))
	params.Set("fields", "key,title,author_name,isbn,first_publish_year,cover_i,publisher,subject,number_of_pages_median")

	var res searchResponse
	if err := c.get(ctx, c.baseURL+"/search.json?"+params.Encode(), &res); err != nil {
		return nil, err
	}

	books := make([]library.Book, 0, len(res.Docs))
	for _, d := range res.Docs {
		id := workID(d.Key)
		if id == "" {
			continue
		}
		books = append(books, docToBook(id, d))
	}
	return books, nil
}

// GetByID fetches a work by a book ID returned from Search. IDs without
// IDPrefix are not Open Library's and yield ErrNotFound without a call.
func (c *Client) GetByID(ctx context.Context, id string) (library.Book, error) {
	key, ok := strings.CutPrefix(id, IDPrefix)
	if !ok || key == "" {
		return library.Book{}, ErrNotFound
	}

	var w work
	if err := c.get(ctx, c.baseURL+"/works/"+url.PathEscape(key)+".json", &w); err != nil {
		return library.Book{}, err
	}

	b := library.Book{
		ID:            id,
		Title:         w.Title,
		Description:   string(w.Description),
		PublishedDate: w.FirstPublishDate,
		Categories:    firstN(w.Subjects, 5),
	}
	if len(w.Covers) > 0 && w.Covers[0] > 0 {
		b.Thumbnail = fmt.Sprintf(coverURL, w.Covers[0])
	}
	for _, a := range w.Authors {
		name, err := c.authorName(ctx, a.Author.Key)
		if err != nil {
			return library.Book{}, err
		}
		if name != "" {
			b.Authors = append(b.Authors, name)
		}
	}
	return b, nil
}

func (c *Client) authorName(ctx context.Context, authorKey string) (string, error) {
	key := strings.TrimPrefix(authorKey, "/authors/")
	if key == "" {
		return "", nil
	}
	var a author
	if err := c.get(ctx, c.baseURL+"/authors/"+url.PathEscape(key)+".json", &a); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return a.Name, nil
}

func docToBook(id string, d searchDoc) library.Book {
	b := library.Book{
		ID:         id,
		Title:      d.Title,
		Authors:    d.AuthorNames,
		PageCount:  d.Pages,
		Categories: firstN(d.Subjects, 5),
	}
	if len(d.ISBN) > 0 {
		b.ISBN = d.ISBN[0]
		for _, isbn := range d.ISBN {
			if len(isbn) == 13 {
				b.ISBN = isbn
				break
			}
		}
	}
	if d.FirstPublishYear > 0 {
		b.PublishedDate = strconv.Itoa(d.FirstPublishYear)
	}
	if len(d.Publishers) > 0 {
		b.Publisher = d.Publishers[0]
	}
	if d.CoverID > 0 {
		b.Thumbnail = fmt.Sprintf(coverURL, d.CoverID)
	}
	return b
}

// workID turns "/works/OL45804W" into "OL:OL45804W".
func workID(key string) string {
	k := strings.TrimPrefix(key, "/works/")
	if k == "" || strings.Contains(k, "/") {
		return ""
	}
	return IDPrefix + k
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (c *Client) get(ctx context.Context, u string, target any) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
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
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

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
