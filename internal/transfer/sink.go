package transfer

import (
	"fmt"
	"io"
	"os"

	"github.com/tanq16/minicurl/internal/buffer"
)

const sniffSize = 4096

// Sink selects where body bytes go: the envelope's in-memory buffer or a
// file opened for appending.
type Sink struct {
	path string
}

func MemorySink() Sink {
	return Sink{}
}

func FileSink(path string) Sink {
	return Sink{path: path}
}

func (s Sink) IsFile() bool {
	return s.path != ""
}

func (s Sink) Path() string {
	return s.path
}

type sinkWriter interface {
	Append(p []byte) int
	Size() int64
	// Resumed is how many bytes from before the transfer are still kept.
	Resumed() int64
	Reset() error
	Close() error
}

type memorySink struct {
	buf *buffer.Buffer
}

func (m *memorySink) Append(p []byte) int { return m.buf.Append(p) }
func (m *memorySink) Size() int64         { return int64(m.buf.Len()) }
func (m *memorySink) Resumed() int64      { return 0 }
func (m *memorySink) Close() error        { return nil }

func (m *memorySink) Reset() error {
	m.buf.Reset()
	return nil
}

// fileSink appends to a file. It is never opened with O_TRUNC: bytes from
// an earlier attempt or an earlier run are the resume offset.
type fileSink struct {
	f       *os.File
	size    int64
	resumed int64
}

func openFileSink(path string) (*fileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("error opening output file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error reading output file size: %w", err)
	}
	return &fileSink{f: f, size: info.Size(), resumed: info.Size()}, nil
}

func (s *fileSink) Append(p []byte) int {
	n, _ := s.f.Write(p)
	s.size += int64(n)
	return n
}

func (s *fileSink) Size() int64    { return s.size }
func (s *fileSink) Resumed() int64 { return s.resumed }

// Reset discards the file content. Only used when the server ignored a
// range request and is sending the body from the start.
func (s *fileSink) Reset() error {
	if err := s.f.Truncate(0); err != nil {
		return err
	}
	s.size = 0
	s.resumed = 0
	return nil
}

func (s *fileSink) Close() error {
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// sniffFile returns up to sniffSize bytes of path starting at offset, the
// part of the file written by the current transfer.
func sniffFile(path string, offset int64) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	buf := make([]byte, sniffSize)
	n, _ := io.ReadFull(io.NewSectionReader(f, offset, sniffSize), buf)
	return buf[:n]
}
