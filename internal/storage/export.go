package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ExportRecord is one line of a JSONL archive. Its field names match the
// inbound event shape, so an archive can be fed back through ingestion.
type ExportRecord struct {
	Message
	ChannelDisplayName string `json:"channel_display_name,omitempty"`
}

// ExportJSONL writes every stored message of channelID to w, one JSON object
// per line, oldest first.
func ExportJSONL(ctx context.Context, s Store, channelID string, w io.Writer) (int, error) {
	conv, err := s.GetConversation(ctx, channelID)
	if err != nil {
		return 0, err
	}
	if conv == nil || conv.MessageCount == 0 {
		return 0, nil
	}
	msgs, err := s.QueryRecent(ctx, channelID, conv.MessageCount)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	for _, m := range msgs {
		if err := enc.Encode(ExportRecord{Message: m, ChannelDisplayName: conv.DisplayName}); err != nil {
			return 0, fmt.Errorf("encode: %w", err)
		}
	}
	return len(msgs), nil
}

// ExportJSONLFile is ExportJSONL into a file at path, replacing it.
func ExportJSONLFile(ctx context.Context, s Store, channelID, path string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to ensure export dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open write: %w", err)
	}
	n, err := ExportJSONL(ctx, s, channelID, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close: %w", cerr)
	}
	return n, err
}
