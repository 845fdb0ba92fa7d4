package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ContentTypeJSON is the content type of archived JSON documents.
const ContentTypeJSON = "application/json"

// PutJSON encodes v with two-space indentation and stores it at key.
func PutJSON(ctx context.Context, s Store, key string, v any, metadata map[string]string) (Info, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Info{}, fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(ctx, key, bytes.NewReader(data), PutOptions{ContentType: ContentTypeJSON, Metadata: metadata})
}

// GetJSON decodes the document stored at key into v.
func GetJSON(ctx context.Context, s Store, key string, v any) (Info, error) {
	info, rc, err := s.Get(ctx, key)
	if err != nil {
		return Info{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Info{}, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return Info{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return info, nil
}
