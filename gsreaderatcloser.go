package polygenic

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
)

// GSReaderAtCloser decorates a Google Storage object handle with ReadAt, so
// that a PLINK .bed can be read column by column over the wire.
type GSReaderAtCloser struct {
	*storage.ObjectHandle
	Context context.Context
}

// ReadAt satisfies io.ReaderAt. Note that this is dependent upon making p a
// buffer of the desired length to be read by NewRangeReader.
func (o GSReaderAtCloser) ReadAt(p []byte, offset int64) (n int, err error) {
	rdr, err := o.NewRangeReader(o.Context, offset, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rdr.Close()

	// A single Read may return fewer bytes than a range request delivers.
	return io.ReadFull(rdr, p)
}

// Close satisfies io.Closer. Every ReadAt closes its own range reader, so
// there is nothing left to release.
func (o GSReaderAtCloser) Close() error {
	return nil
}
