package outbound

import (
	"context"

	"github.com/ajkula/notifytrigger/domain/model"
)

// ChunkHandler receives downloaded bytes in order. Returning an error stops the download.
type ChunkHandler func(chunk []byte) error

// RemoteFileDirectory lists, fetches and deletes files on the remote file server
type RemoteFileDirectory interface {
	// ListFiles returns the entries of one directory in listing order
	ListFiles(ctx context.Context, dirPath string) ([]*model.RemoteFileInfo, error)

	// DownloadFile streams the file at filePath to handle, one chunk at a time.
	// handle is never called concurrently and chunk N+1 is only read once
	// handle returned for chunk N.
	DownloadFile(ctx context.Context, filePath string, handle ChunkHandler) error

	// DeleteResource removes name from dirPath
	DeleteResource(ctx context.Context, name, dirPath string) error
}
