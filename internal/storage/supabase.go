package storage

import (
	"context"
	"fmt"

	supa "github.com/supabase-community/supabase-go"
)

// supabaseRow is the shape of the save table: key text primary key, value text
type supabaseRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SupabaseStore keeps values in a Supabase (PostgREST) table
type SupabaseStore struct {
	client *supa.Client
	table  string
}

// NewSupabaseStore connects to a Supabase project
func NewSupabaseStore(url, key, table string) (*SupabaseStore, error) {
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &SupabaseStore{client: client, table: table}, nil
}

// Get implements Store
func (s *SupabaseStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var rows []supabaseRow
	_, err := s.client.From(s.table).Select("key,value", "", false).Eq("key", key).ExecuteTo(&rows)
	if err != nil {
		return "", fmt.Errorf("select %s: %w", key, err)
	}
	if len(rows) == 0 {
		return "", ErrNotFound
	}
	return rows[0].Value, nil
}

// Set implements Store
func (s *SupabaseStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row := supabaseRow{Key: key, Value: value}
	if _, _, err := s.client.From(s.table).Upsert(row, "key", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Delete implements Store
func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, _, err := s.client.From(s.table).Delete("minimal", "").Eq("key", key).Execute(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close implements Store
func (s *SupabaseStore) Close() error {
	return nil
}
