package tracemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"pitimer/protocol"
)

const readChunk = 256

// Run reads trace frames from r and feeds them to v until r reports EOF or
// ctx is cancelled. A Read blocked on r is only abandoned once it returns,
// so r should carry a read timeout.
func Run(ctx context.Context, r io.Reader, v *Verifier) error {
	g, ctx := errgroup.WithContext(ctx)
	chunks := make(chan []byte, 16)

	g.Go(func() error {
		defer close(chunks)
		for {
			buf := make([]byte, readChunk)
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case chunks <- buf[:n]:
				case <-ctx.Done():
					return nil
				}
			}
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case errors.Is(err, os.ErrDeadlineExceeded):
			case err != nil:
				return fmt.Errorf("read trace: %w", err)
			}
			if ctx.Err() != nil {
				return nil
			}
		}
	})

	g.Go(func() error {
		dec := protocol.NewFrameDecoder()
		for chunk := range chunks {
			dec.Write(chunk)
			drain(dec, v)
		}
		return nil
	})

	return g.Wait()
}

// drain feeds every complete frame buffered in dec to v
func drain(dec *protocol.FrameDecoder, v *Verifier) {
	for {
		frame, err := dec.Next()
		switch {
		case errors.Is(err, protocol.ErrNeedMore):
			return
		case err != nil:
			v.BadFrame(err)
			continue
		}

		v.Frame(frame.Seq)
		events, err := protocol.DecodeEvents(frame.Payload)
		for _, ev := range events {
			v.Observe(ev)
		}
		if err != nil {
			v.BadFrame(fmt.Errorf("frame %d: %w", frame.Seq, err))
		}
	}
}
