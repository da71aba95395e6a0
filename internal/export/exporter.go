package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/govsearch/govsearch/internal/storage"
)

// DefaultThreshold is the row count above which results are exportable.
const DefaultThreshold = 20

type Artifact struct {
	Key         string    `json:"key"`
	URL         string    `json:"url,omitempty"`
	FileName    string    `json:"file_name"`
	Format      Format    `json:"format"`
	Rows        int       `json:"rows"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	ContentType string    `json:"content_type"`
}

type Options struct {
	Format        Format
	Threshold     int
	PresignExpiry time.Duration
}

// Exporter uploads large results to object storage.
type Exporter struct {
	store         storage.ObjectStore
	format        Format
	threshold     int
	presignExpiry time.Duration
	now           func() time.Time
}

func NewExporter(store storage.ObjectStore, opts Options) (*Exporter, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	format := opts.Format
	if format == "" {
		format = FormatCSV
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Exporter{
		store:         store,
		format:        format,
		threshold:     threshold,
		presignExpiry: opts.PresignExpiry,
		now:           time.Now,
	}, nil
}

func (e *Exporter) Threshold() int {
	return e.threshold
}

func (e *Exporter) Eligible(rowCount int) bool {
	return rowCount > e.threshold
}

func (e *Exporter) Upload(ctx context.Context, sessionID string, columns []string, rows [][]any) (Artifact, error) {
	createdAt := e.now().UTC()
	key, err := storage.BuildExportKey(sessionID, createdAt, string(e.format))
	if err != nil {
		return Artifact{}, err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, e.format, columns, rows); err != nil {
		return Artifact{}, err
	}
	size := int64(buf.Len())
	if _, err := e.store.Put(ctx, key, &buf, size, storage.PutOptions{
		ContentType: e.format.ContentType(),
		Metadata:    map[string]string{"session-id": sessionID},
	}); err != nil {
		return Artifact{}, fmt.Errorf("upload export: %w", err)
	}
	signed, err := e.store.PresignGet(ctx, key, e.presignExpiry)
	if err != nil {
		return Artifact{}, fmt.Errorf("presign export: %w", err)
	}
	return Artifact{
		Key:         key,
		URL:         signed,
		FileName:    storage.ExportFileName(createdAt, string(e.format)),
		Format:      e.format,
		Rows:        len(rows),
		SizeBytes:   size,
		CreatedAt:   createdAt,
		ContentType: e.format.ContentType(),
	}, nil
}

func (e *Exporter) Remove(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := e.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("remove export: %w", err)
		}
	}
	return nil
}
