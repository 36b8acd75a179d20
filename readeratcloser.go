package polygenic

import "io"

type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// stackedCloser closes a decompressing reader and then the file beneath it.
type stackedCloser struct {
	io.ReadCloser
	under io.Closer
}

func (s *stackedCloser) Close() error {
	err := s.ReadCloser.Close()
	if s.under == nil {
		return err
	}
	if err2 := s.under.Close(); err == nil {
		err = err2
	}

	return err
}
