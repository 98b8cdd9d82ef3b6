package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"padron-sync/internal/config"
)

// FTPLoader retrieves the extract from the funding source's FTP drop
// directory.
type FTPLoader struct {
	cfg       config.FTPConfig
	dir       string
	file      string
	delimiter rune
	logger    *zap.Logger
}

// NewFTPLoader creates an FTP extract loader.
func NewFTPLoader(cfg config.FTPConfig, dir, file string, delimiter rune, logger *zap.Logger) *FTPLoader {
	return &FTPLoader{
		cfg:       cfg,
		dir:       dir,
		file:      file,
		delimiter: delimiter,
		logger:    logger,
	}
}

var _ DataLoader = (*FTPLoader)(nil)

// ftpAddr appends the default FTP port unless the host already names
// one.
func ftpAddr(host string) string {
	if strings.Contains(host, ":") {
		return host
	}
	return host + ":21"
}

// Load logs in, changes to the drop directory and parses the extract.
func (l *FTPLoader) Load(ctx context.Context) (*Extract, error) {
	addr := ftpAddr(l.cfg.Host)
	l.logger.Info("Loading extract over FTP",
		zap.String("addr", addr),
		zap.String("dir", l.dir),
		zap.String("file", l.file),
	)

	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to dial ftp host: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(l.cfg.User, l.cfg.Password); err != nil {
		return nil, fmt.Errorf("ftp login failed: %w", err)
	}

	if l.dir != "" {
		if err := conn.ChangeDir(l.dir); err != nil {
			return nil, fmt.Errorf("failed to change ftp directory: %w", err)
		}
	}

	resp, err := conn.Retr(l.file)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve %s: %w", l.file, err)
	}
	defer resp.Close()

	extract, err := Parse(resp, l.delimiter)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Extract loaded", zap.Int("rows", len(extract.Rows)))
	return extract, nil
}
