package polygenic

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// IsGoogleStoragePath reports whether path names a gs:// object.
func IsGoogleStoragePath(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

func splitGoogleStoragePath(path string) (bucket, object string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
	if len(pathParts) != 2 {
		return "", "", fmt.Errorf("tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

// ObjectHandle resolves a gs://bucket/object path.
func ObjectHandle(path string, client *storage.Client) (*storage.ObjectHandle, error) {
	bucketName, pathName, err := splitGoogleStoragePath(path)
	if err != nil {
		return nil, err
	}

	return client.Bucket(bucketName).Object(pathName), nil
}

// OpenInput opens a local path or, when client is non-nil, a gs:// object,
// and transparently decompresses it. Closing the result releases everything.
func OpenInput(path string, client *storage.Client) (io.ReadCloser, error) {
	if client != nil && IsGoogleStoragePath(path) {
		handle, err := ObjectHandle(path, client)
		if err != nil {
			return nil, err
		}

		rc, err := handle.NewReader(context.Background())
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}

		dr, err := MaybeDecompressReader(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}

		return &stackedCloser{ReadCloser: dr, under: rc}, nil
	}

	f, err := os.Open(ExpandHome(path))
	if err != nil {
		return nil, pfx.Err(err)
	}

	rc, err := MaybeDecompressReadCloserFromFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return rc, nil
}

// OpenReaderAt opens a local path or a gs:// object for random access and
// reports its size.
func OpenReaderAt(path string, client *storage.Client) (ReaderAtCloser, int64, error) {
	if client != nil && IsGoogleStoragePath(path) {
		handle, err := ObjectHandle(path, client)
		if err != nil {
			return nil, 0, err
		}

		wrappedHandle := GSReaderAtCloser{
			ObjectHandle: handle,
			Context:      context.Background(),
		}

		// Make a hard call to get the filesize
		attrs, err := wrappedHandle.ObjectHandle.Attrs(wrappedHandle.Context)
		if err != nil {
			return nil, 0, pfx.Err(fmt.Errorf("%s: %s", path, err))
		}

		return wrappedHandle, attrs.Size, nil
	}

	f, err := os.Open(ExpandHome(path))
	if err != nil {
		return nil, 0, pfx.Err(err)
	}
	fstat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, pfx.Err(err)
	}

	return f, fstat.Size(), nil
}
