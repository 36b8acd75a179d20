package genotype

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/polygenic"
)

var (
	bgiImportMu     sync.RWMutex
	bgiImportedPath = make(map[string]string)
)

// ImportBGILocked copies a gs:// BGEN index into the local temp directory once
// per process. fresh is true for the call that did the download.
func ImportBGILocked(bgiPath string, client *storage.Client) (local string, fresh bool, err error) {
	bgiImportMu.RLock()
	local, exists := bgiImportedPath[bgiPath]
	bgiImportMu.RUnlock()
	if exists {
		return local, false, nil
	}

	bgiImportMu.Lock()
	defer bgiImportMu.Unlock()

	// Another goroutine may have won the race for the write lock.
	if local, exists = bgiImportedPath[bgiPath]; exists {
		return local, false, nil
	}

	local = filepath.Join(os.TempDir(), filepath.Base(bgiPath))
	if err := downloadObject(bgiPath, local, client); err != nil {
		return "", false, err
	}
	bgiImportedPath[bgiPath] = local

	return local, true, nil
}

func downloadObject(gsPath, local string, client *storage.Client) error {
	if client == nil {
		return fmt.Errorf("%s is a Google Storage path but no storage client was provided", gsPath)
	}

	if !polygenic.IsGoogleStoragePath(gsPath) {
		return fmt.Errorf("%s is not a gs:// path", gsPath)
	}

	handle, err := polygenic.ObjectHandle(gsPath, client)
	if err != nil {
		return err
	}

	rc, err := handle.NewReader(context.Background())
	if err != nil {
		return pfx.Err(fmt.Errorf("%s: %w", gsPath, err))
	}
	defer rc.Close()

	f, err := os.Create(local)
	if err != nil {
		return pfx.Err(err)
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(local)
		return pfx.Err(err)
	}

	return pfx.Err(f.Close())
}
