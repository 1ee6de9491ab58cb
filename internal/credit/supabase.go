package credit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
)

// SupabaseStore implements Store against a Supabase user_credits table via
// the PostgREST API.
type SupabaseStore struct {
	client *supabase.Client
	table  string
}

func NewSupabaseStore(url, serviceKey string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("credit: create supabase client: %w", err)
	}
	return &SupabaseStore{client: client, table: "user_credits"}, nil
}

type supabaseRow struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	DailyUsed int    `json:"daily_credits_used"`
	ResetAt   string `json:"daily_reset_at"`
	Purchased int    `json:"purchased_credits"`
	UpdatedAt string `json:"updated_at"`
}

func (s *SupabaseStore) Get(ctx context.Context, userID string) (*Account, error) {
	data, _, err := s.client.From(s.table).
		Select("user_id, email, daily_credits_used, daily_reset_at, purchased_credits, updated_at", "", false).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("credit: get account: %w", err)
	}

	var rows []supabaseRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("credit: parse account: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	acc := &Account{
		UserID:       row.UserID,
		Email:        row.Email,
		DailyUsed:    row.DailyUsed,
		Purchased:    row.Purchased,
		updatedAtRaw: row.UpdatedAt,
	}
	if t, err := time.Parse(time.RFC3339Nano, row.ResetAt); err == nil {
		acc.ResetAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, row.UpdatedAt); err == nil {
		acc.UpdatedAt = t
	}
	return acc, nil
}

func (s *SupabaseStore) Insert(ctx context.Context, acc Account) error {
	_, _, err := s.client.From(s.table).
		Insert(map[string]interface{}{
			"user_id":            acc.UserID,
			"email":              acc.Email,
			"daily_credits_used": acc.DailyUsed,
			"daily_reset_at":     acc.ResetAt.UTC().Format(time.RFC3339Nano),
			"purchased_credits":  acc.Purchased,
			"updated_at":         acc.UpdatedAt.UTC().Format(time.RFC3339Nano),
		}, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("credit: insert account: %w", err)
	}
	return nil
}

// Update filters on the exact updated_at string read earlier so a concurrent
// write leaves this one without a matching row instead of being overwritten.
func (s *SupabaseStore) Update(ctx context.Context, acc Account, prev Account) (bool, error) {
	data, _, err := s.client.From(s.table).
		Update(map[string]interface{}{
			"email":              acc.Email,
			"daily_credits_used": acc.DailyUsed,
			"daily_reset_at":     acc.ResetAt.UTC().Format(time.RFC3339Nano),
			"purchased_credits":  acc.Purchased,
			"updated_at":         acc.UpdatedAt.UTC().Format(time.RFC3339Nano),
		}, "representation", "").
		Eq("user_id", acc.UserID).
		Eq("updated_at", prev.updatedAtRaw).
		Execute()
	if err != nil {
		return false, fmt.Errorf("credit: update account: %w", err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return false, fmt.Errorf("credit: parse update result: %w", err)
	}
	return len(rows) > 0, nil
}
