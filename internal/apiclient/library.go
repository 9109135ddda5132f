package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"bookshelf/internal/library"
)

type libraryDocument struct {
	Exists   bool              `json:"exists"`
	Library  []library.Entry   `json:"library"`
	Cabinets []library.Cabinet `json:"cabinets"`
}

// Fetch returns the signed-in user's remote library. The server derives the
// user from the access token; userID only guards against writing to a
// different account than the one the tokens belong to.
func (c *Client) Fetch(ctx context.Context, userID string) (library.Snapshot, bool, error) {
	if err := c.checkUser(userID); err != nil {
		return library.Snapshot{}, false, err
	}
	var doc libraryDocument
	if err := c.call(ctx, http.MethodGet, "/v1/me/library", nil, &doc, true); err != nil {
		return library.Snapshot{}, false, err
	}
	return library.Snapshot{Library: doc.Library, Cabinets: doc.Cabinets}, doc.Exists, nil
}

// Merge replaces the remote library and cabinets. Other fields of the remote
// document are left alone.
func (c *Client) Merge(ctx context.Context, userID string, snap library.Snapshot) error {
	if err := c.checkUser(userID); err != nil {
		return err
	}
	snap = snap.Clone()
	body := map[string]any{"library": snap.Library, "cabinets": snap.Cabinets}
	return c.call(ctx, http.MethodPatch, "/v1/me/library", body, nil, true)
}

func (c *Client) checkUser(userID string) error {
	creds := c.Credentials()
	if creds == nil || (creds.UserID != "" && creds.UserID != userID) {
		return ErrUnauthorized
	}
	return nil
}

// Search queries the catalog. The server answers an empty list when the
// catalog provider is down.
func (c *Client) Search(ctx context.Context, query string) ([]library.Book, error) {
	var books []library.Book
	path := "/v1/catalog/search?q=" + url.QueryEscape(query)
	if err := c.call(ctx, http.MethodGet, path, nil, &books, false); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) GetBook(ctx context.Context, id string) (library.Book, error) {
	var b library.Book
	if err := c.call(ctx, http.MethodGet, "/v1/catalog/books/"+url.PathEscape(id), nil, &b, false); err != nil {
		return library.Book{}, err
	}
	return b, nil
}
