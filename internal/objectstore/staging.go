package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Puller mirrors a bucket prefix into a local directory so the crawler can
// treat staged uploads like any other folder.
type Puller struct {
	client Client
	bucket string
	logger *slog.Logger
}

// NewPuller builds a staging puller.
func NewPuller(client Client, bucket string, logger *slog.Logger) *Puller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Puller{client: client, bucket: bucket, logger: logger}
}

// Pull downloads every object under customerID/ into destDir, preserving the
// key path below the prefix. Objects whose keys escape the destination via
// path traversal are skipped. Returns the number of files written.
func (p *Puller) Pull(ctx context.Context, customerID, destDir string) (int, error) {
	prefix := customerID + "/"

	objects, err := p.client.ListObjects(ctx, p.bucket, prefix)
	if err != nil {
		return 0, err
	}

	pulled := 0
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj.Key, prefix)
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}

		target := filepath.Join(destDir, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			p.logger.Warn("skipping object escaping staging directory", "key", obj.Key)
			continue
		}

		if err := p.pullOne(ctx, obj.Key, target); err != nil {
			return pulled, err
		}
		pulled++
	}

	p.logger.Info("pulled staging objects",
		"customer_id", customerID, "bucket", p.bucket, "count", pulled)
	return pulled, nil
}

func (p *Puller) pullOne(ctx context.Context, key, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating staging subdirectory for %s; %w", key, err)
	}

	body, err := p.client.GetObject(ctx, p.bucket, key)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating staged file %s; %w", target, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("writing staged file %s; %w", target, err)
	}
	return nil
}
