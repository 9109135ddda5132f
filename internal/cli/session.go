package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"bookshelf/internal/apiclient"
	"bookshelf/internal/shelf"
)

const sessionKey = "session"

// Sessions persists the signed-in user's tokens next to the library
// snapshots.
type Sessions struct {
	kv KV
}

func NewSessions(kv KV) *Sessions {
	return &Sessions{kv: kv}
}

// Load returns nil when nobody is signed in.
func (s *Sessions) Load(ctx context.Context) (*apiclient.Credentials, error) {
	raw, err := s.kv.Get(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var creds apiclient.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if creds.UserID == "" {
		return nil, nil
	}
	return &creds, nil
}

func (s *Sessions) Save(ctx context.Context, creds apiclient.Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, sessionKey, raw); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *Sessions) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, sessionKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func identityOf(creds *apiclient.Credentials) *shelf.Identity {
	if creds == nil {
		return nil
	}
	return &shelf.Identity{UserID: creds.UserID, DisplayName: creds.DisplayName}
}
