// The upstream client library's body may surface as a pull-based reader,
// an async chunk channel, or a push-based emitter. All three are
// normalized behind ChunkSource so the relay loop is written once.

package relay

import (
	"context"
	"io"
	"sync"
)

// ChunkSource yields upstream bytes with pull semantics. Next returns
// io.EOF on clean upstream end. Close releases the upstream resource and
// must unblock a pending Next; it is safe to call more than once.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// --- pull-based reader ---

type readerSource struct {
	r    io.Reader
	once sync.Once
	err  error
}

// NewReaderSource adapts an io.Reader (typically a response body). When
// the reader is also an io.Closer, Close cancels it.
func NewReaderSource(r io.Reader) ChunkSource {
	return &readerSource{r: r}
}

func (s *readerSource) Next(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 4096)
	n, err := s.r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *readerSource) Close() error {
	s.once.Do(func() {
		if c, ok := s.r.(io.Closer); ok {
			s.err = c.Close()
		}
	})
	return s.err
}

// --- async-iterable (channel) ---

type chanSource struct {
	chunks <-chan []byte
	errs   <-chan error
	quit   chan struct{}
	once   sync.Once
}

// NewChanSource adapts a producer that delivers chunks over a channel.
// A close of the chunk channel is a clean end; an error on errs ends the
// stream with that error.
func NewChanSource(chunks <-chan []byte, errs <-chan error) ChunkSource {
	return &chanSource{chunks: chunks, errs: errs, quit: make(chan struct{})}
}

func (s *chanSource) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.quit:
		return nil, io.EOF
	case err := <-s.errs:
		return nil, err
	case b, ok := <-s.chunks:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	}
}

func (s *chanSource) Close() error {
	s.once.Do(func() { close(s.quit) })
	return nil
}

// --- push-based emitter ---

// Emitter is the callback-registering stream shape. Detach must remove all
// listeners and ask the upstream to release its resources.
type Emitter interface {
	OnData(func([]byte))
	OnError(func(error))
	OnEnd(func())
	Detach()
}

type emitterSource struct {
	e      Emitter
	chunks chan []byte
	errs   chan error
	end    chan struct{}
	quit   chan struct{}
	once   sync.Once
}

// NewEmitterSource bridges emitter callbacks into pull semantics. The
// internal buffer absorbs bursts between Next calls.
func NewEmitterSource(e Emitter) ChunkSource {
	s := &emitterSource{
		e:      e,
		chunks: make(chan []byte, 16),
		errs:   make(chan error, 1),
		end:    make(chan struct{}),
		quit:   make(chan struct{}),
	}
	e.OnData(func(b []byte) {
		select {
		case s.chunks <- b:
		case <-s.quit:
		}
	})
	e.OnError(func(err error) {
		select {
		case s.errs <- err:
		default:
		}
	})
	var endOnce sync.Once
	e.OnEnd(func() {
		endOnce.Do(func() { close(s.end) })
	})
	return s
}

func (s *emitterSource) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.quit:
		return nil, io.EOF
	case err := <-s.errs:
		return nil, err
	case b := <-s.chunks:
		return b, nil
	case <-s.end:
		// drain anything emitted before the end signal
		select {
		case b := <-s.chunks:
			return b, nil
		default:
			return nil, io.EOF
		}
	}
}

func (s *emitterSource) Close() error {
	s.once.Do(func() {
		s.e.Detach()
		close(s.quit)
	})
	return nil
}
