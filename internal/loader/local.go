package loader

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// LocalLoader reads the extract from a file on disk.
type LocalLoader struct {
	path      string
	delimiter rune
	logger    *zap.Logger
}

// NewLocalLoader creates a local-file extract loader.
func NewLocalLoader(path string, delimiter rune, logger *zap.Logger) *LocalLoader {
	return &LocalLoader{
		path:      path,
		delimiter: delimiter,
		logger:    logger,
	}
}

var _ DataLoader = (*LocalLoader)(nil)

// Load parses the local extract file.
func (l *LocalLoader) Load(ctx context.Context) (*Extract, error) {
	l.logger.Info("Loading extract from local file", zap.String("path", l.path))

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open extract file: %w", err)
	}
	defer f.Close()

	extract, err := Parse(f, l.delimiter)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Extract loaded", zap.Int("rows", len(extract.Rows)))
	return extract, nil
}
