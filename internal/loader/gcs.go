package loader

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

// GCSLoader reads the most recently updated extract object under a
// bucket prefix. The funding source drops a fresh export per period;
// only the newest one matters.
type GCSLoader struct {
	bucket    string
	prefix    string
	delimiter rune
	logger    *zap.Logger
}

// NewGCSLoader creates a GCS bucket extract loader.
func NewGCSLoader(bucket, prefix string, delimiter rune, logger *zap.Logger) *GCSLoader {
	return &GCSLoader{
		bucket:    bucket,
		prefix:    prefix,
		delimiter: delimiter,
		logger:    logger,
	}
}

var _ DataLoader = (*GCSLoader)(nil)

// Load finds the newest object under the prefix and parses it.
func (l *GCSLoader) Load(ctx context.Context) (*Extract, error) {
	l.logger.Info("Loading extract from GCS bucket",
		zap.String("bucket", l.bucket),
		zap.String("prefix", l.prefix),
	)

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	defer client.Close()

	bkt := client.Bucket(l.bucket)

	var latest string
	var latestUpdated time.Time
	it := bkt.Objects(ctx, &storage.Query{Prefix: l.prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket objects: %w", err)
		}
		if attrs.Updated.After(latestUpdated) {
			latest = attrs.Name
			latestUpdated = attrs.Updated
		}
	}
	if latest == "" {
		return nil, fmt.Errorf("no extract objects under prefix %q in bucket %q", l.prefix, l.bucket)
	}

	l.logger.Info("Selected newest extract object",
		zap.String("object", latest),
		zap.Time("updated", latestUpdated),
	)

	rc, err := bkt.Object(latest).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s: %w", latest, err)
	}
	defer rc.Close()

	extract, err := Parse(rc, l.delimiter)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Extract loaded", zap.Int("rows", len(extract.Rows)))
	return extract, nil
}
