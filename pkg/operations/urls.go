package operations

import (
	"context"
	"net/http"
	"time"

	"github.com/kasuganosora/lakebase/pkg/storage"
	"github.com/kasuganosora/lakebase/pkg/types"
)

// GetUploadURL presigns a PUT for a tenant-scoped object key.
func (s *Service) GetUploadURL(ctx context.Context, req *types.GetUploadURLRequest) *types.Response {
	if s.store == nil {
		return types.Fail(types.ErrCodeStorage, "object storage is not configured")
	}

	expiry := time.Duration(req.ExpiresSeconds) * time.Second
	url, key, err := s.store.PresignUpload(ctx, req.TenantID, req.Key, req.ContentType, expiry)
	if err != nil {
		return failFromError(types.ErrCodeStorage, err)
	}
	return types.OK(&types.PresignedURLData{
		URL:       url,
		Key:       key,
		Method:    http.MethodPut,
		ExpiresIn: expirySeconds(expiry),
	})
}

// GetDownloadURL presigns a GET for a tenant-scoped object key.
func (s *Service) GetDownloadURL(ctx context.Context, req *types.GetDownloadURLRequest) *types.Response {
	if s.store == nil {
		return types.Fail(types.ErrCodeStorage, "object storage is not configured")
	}

	expiry := time.Duration(req.ExpiresSeconds) * time.Second
	url, key, err := s.store.PresignDownload(ctx, req.TenantID, req.Key, expiry)
	if err != nil {
		return failFromError(types.ErrCodeStorage, err)
	}
	return types.OK(&types.PresignedURLData{
		URL:       url,
		Key:       key,
		Method:    http.MethodGet,
		ExpiresIn: expirySeconds(expiry),
	})
}

func expirySeconds(expiry time.Duration) int {
	if expiry <= 0 {
		expiry = storage.DefaultURLExpiry
	}
	return int(expiry.Seconds())
}
