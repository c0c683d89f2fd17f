// Bridges an upstream server-sent-event stream to a downstream consumer,
// byte for byte, with idle heartbeats and single-shot upstream teardown.

package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultHeartbeat is how long the downstream may sit idle before a
// comment frame is written to keep intermediaries from closing it.
const DefaultHeartbeat = 15 * time.Second

// heartbeatFrame is a comment line; conforming event-stream parsers
// ignore it.
var heartbeatFrame = []byte(": heartbeat\n\n")

type Relay struct {
	Source    ChunkSource
	Heartbeat time.Duration
	Logger    *zap.Logger
}

func New(source ChunkSource, logger *zap.Logger) *Relay {
	return &Relay{Source: source, Heartbeat: DefaultHeartbeat, Logger: logger}
}

// SetStreamHeaders applies the standard event-stream response framing.
func SetStreamHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Run copies upstream chunks to w until the upstream ends or ctx is
// canceled (downstream disconnect). The upstream is released exactly once
// in every exit path. A clean upstream end returns nil; an upstream error
// is returned after the downstream is closed.
func (r *Relay) Run(ctx context.Context, w io.Writer) error {
	if r.Heartbeat <= 0 {
		r.Heartbeat = DefaultHeartbeat
	}
	if r.Logger == nil {
		r.Logger = zap.NewNop()
	}

	var closeOnce sync.Once
	closeSource := func() {
		closeOnce.Do(func() {
			if err := r.Source.Close(); err != nil {
				r.Logger.Warn("upstream close failed", zap.Error(err))
			}
		})
	}
	defer closeSource()

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	type readResult struct {
		chunk []byte
		err   error
	}
	reads := make(chan readResult)

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	go func() {
		defer close(reads)
		for {
			chunk, err := r.Source.Next(readCtx)
			select {
			case reads <- readResult{chunk, err}:
			case <-readCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	idle := time.NewTimer(r.Heartbeat)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			// downstream went away; release the upstream and unblock the
			// pending read before returning
			closeSource()
			return nil

		case <-idle.C:
			if _, err := w.Write(heartbeatFrame); err != nil {
				closeSource()
				return nil
			}
			flush()
			idle.Reset(r.Heartbeat)

		case res, ok := <-reads:
			if !ok {
				return nil
			}
			if res.err != nil {
				closeSource()
				if errors.Is(res.err, io.EOF) || errors.Is(res.err, context.Canceled) {
					return nil
				}
				return res.err
			}
			if len(res.chunk) == 0 {
				continue
			}
			if _, err := w.Write(res.chunk); err != nil {
				closeSource()
				return nil
			}
			flush()
			// a real chunk resets the idle clock
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(r.Heartbeat)
		}
	}
}
