package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"syncx/contract"
	"syncx/domain/chat"
	"syncx/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DiskStore keeps blobs as files in one directory. The HTTP server exposes
// that directory under the public base URL.
type DiskStore struct {
	log     *slog.Logger
	dir     string
	baseURL string
}

func NewDiskStore(log *slog.Logger, dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{log: log, dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *DiskStore) Upload(ctx context.Context, file contract.File) (chat.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return chat.Attachment{}, err
	}
	publicID := NewPublicID(file.Data)
	if err := os.WriteFile(filepath.Join(d.dir, publicID), file.Data, 0o644); err != nil {
		return chat.Attachment{}, fmt.Errorf("write blob: %w", err)
	}
	d.log.Debug("Blob stored", "public_id", publicID, "name", file.Name, "size", len(file.Data))
	return chat.Attachment{PublicID: publicID, URL: d.baseURL + "/" + publicID}, nil
}

// Delete removes blobs; unknown ids are ignored.
func (d *DiskStore) Delete(_ context.Context, publicIDs ...string) error {
	var errs []error
	for _, publicID := range publicIDs {
		if publicID == "" || filepath.Base(publicID) != publicID {
			errs = append(errs, errors.ErrValidation.WithMessage("invalid blob id %q", publicID))
			continue
		}
		err := os.Remove(filepath.Join(d.dir, publicID))
		if err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewPublicID builds a random blob id carrying the extension of the
// detected content type.
func NewPublicID(data []byte) string {
	return uuid.NewString() + mimetype.Detect(data).Extension()
}
