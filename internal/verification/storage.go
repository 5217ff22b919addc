package verification

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"croptrust/verification-portal/verification-backend/pkg/storage"
)

// PhotoFile is one uploaded photo as received from the client
type PhotoFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PhotoStorage uploads submission photos to object storage
type PhotoStorage struct {
	store   storage.ObjectStore
	folder  string
	timeout time.Duration
}

func NewPhotoStorage(store storage.ObjectStore, folder string, timeout time.Duration) *PhotoStorage {
	return &PhotoStorage{store: store, folder: strings.Trim(folder, "/"), timeout: timeout}
}

// Key returns the object key for the index-th photo of a submission
func (p *PhotoStorage) Key(stamp time.Time, userID string, index int, filename string) string {
	name := fmt.Sprintf("verification_%d_%s_%d%s", stamp.UnixMilli(), sanitizeKeyPart(userID), index, strings.ToLower(path.Ext(filename)))
	if p.folder == "" {
		return name
	}
	return p.folder + "/" + name
}

// UploadAll uploads every file concurrently. The returned photos mirror the
// input order. The first failure cancels the remaining uploads.
func (p *PhotoStorage) UploadAll(ctx context.Context, userID string, files []PhotoFile, stamp time.Time) ([]Photo, error) {
	photos := make([]Photo, len(files))
	g, gctx := errgroup.WithContext(ctx)

	for i, f := range files {
		g.Go(func() error {
			uctx := gctx
			if p.timeout > 0 {
				var cancel context.CancelFunc
				uctx, cancel = context.WithTimeout(gctx, p.timeout)
				defer cancel()
			}

			res, err := p.store.Upload(uctx, storage.UploadInput{
				Key:         p.Key(stamp, userID, i, f.Filename),
				ContentType: f.ContentType,
				Body:        bytes.NewReader(f.Data),
				Metadata:    map[string]string{"user-id": userID},
			})
			if err != nil {
				return fmt.Errorf("photo %d: %w", i+1, err)
			}
			photos[i] = Photo{ID: uuid.NewString(), URL: res.URL, Status: PhotoPending}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return photos, nil
}

func sanitizeKeyPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
