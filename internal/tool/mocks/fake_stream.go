package mocks

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// FakeStream is a scripted tool.Stream. It yields Data, then ReadErr (io.EOF
// when nil), and Wait returns WaitErr.
type FakeStream struct {
	reader  io.Reader
	ReadErr error
	WaitErr error

	// Block makes Read wait until Kill is called once Data is drained.
	Block bool

	killed   atomic.Bool
	waited   atomic.Bool
	killOnce sync.Once
	killCh   chan struct{}
}

// NewFakeStream returns a stream producing data.
func NewFakeStream(data string) *FakeStream {
	return &FakeStream{
		reader: strings.NewReader(data),
		killCh: make(chan struct{}),
	}
}

// Read implements io.Reader
func (s *FakeStream) Read(p []byte) (int, error) {
	n, err := s.reader.Read(p)
	if n > 0 {
		return n, nil
	}
	if err == io.EOF {
		if s.Block {
			<-s.killCh
			return 0, io.ErrClosedPipe
		}
		if s.ReadErr != nil {
			return 0, s.ReadErr
		}
	}
	return n, err
}

// Wait implements tool.Stream
func (s *FakeStream) Wait() error {
	s.waited.Store(true)
	if s.killed.Load() {
		return context.Canceled
	}
	return s.WaitErr
}

// Kill implements tool.Stream
func (s *FakeStream) Kill() error {
	s.killed.Store(true)
	s.killOnce.Do(func() { close(s.killCh) })
	return nil
}

// Killed reports whether Kill was called.
func (s *FakeStream) Killed() bool { return s.killed.Load() }

// Waited reports whether Wait was called.
func (s *FakeStream) Waited() bool { return s.waited.Load() }
