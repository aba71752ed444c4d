package protocol

import "pitimer/core"

// TraceWriter packs scheduler events into frames and hands each finished
// frame to a platform write function (UART, USB, a test buffer)
type TraceWriter struct {
	write  func([]byte)
	output *ScratchOutput
	seq    uint8
}

// NewTraceWriter creates a TraceWriter sending frames through write
func NewTraceWriter(write func([]byte)) *TraceWriter {
	return &TraceWriter{
		write:  write,
		output: NewScratchOutput(),
	}
}

// WriteEvents encodes the events, EventsPerFrame at a time
func (w *TraceWriter) WriteEvents(events []core.Event) {
	for len(events) > 0 {
		n := min(len(events), EventsPerFrame)
		batch := events[:n]
		events = events[n:]

		w.output.Reset()
		w.EncodeFrame(w.output, func(output OutputBuffer) {
			for _, ev := range batch {
				EncodeEvent(output, ev)
			}
		})
		w.write(w.output.Result())
	}
}

// EncodeFrame writes one frame around the payload produced by frameData
func (w *TraceWriter) EncodeFrame(output OutputBuffer, frameData func(output OutputBuffer)) {
	cursor := output.CurPosition()

	// Length placeholder and sequence
	output.Output([]byte{0, MessageDest | (w.seq & MessageSeqMask)})
	w.seq++

	frameData(output)

	// Update length field
	changed := len(output.DataSince(cursor))
	output.Update(cursor, uint8(changed+MessageTrailerSize))

	crc := CRC16(output.DataSince(cursor))
	output.Output([]byte{
		uint8((crc & 0xFF00) >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})
}

// FrameDecoder splits a byte stream into frames. After a corrupt frame it
// skips to the next sync byte, the same way the Klipper transport
// resynchronizes.
type FrameDecoder struct {
	buf          []byte
	synchronized bool
}

// NewFrameDecoder creates a decoder that expects the stream to start on a
// frame boundary
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{synchronized: true}
}

// Write appends raw bytes from the stream
func (d *FrameDecoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next returns the next complete frame. It returns ErrNeedMore when the
// buffered data ends mid-frame, and ErrBadFrame or ErrBadCRC for a
// corrupt frame, after which decoding continues past the next sync byte.
func (d *FrameDecoder) Next() (Frame, error) {
	if !d.synchronized {
		syncPos := -1
		for i, b := range d.buf {
			if b == MessageValueSync {
				syncPos = i
				break
			}
		}
		if syncPos < 0 {
			d.buf = d.buf[:0]
			return Frame{}, ErrNeedMore
		}
		d.buf = d.buf[syncPos+1:]
		d.synchronized = true
	}

	// Skip leading sync bytes
	for len(d.buf) > 0 && d.buf[0] == MessageValueSync {
		d.buf = d.buf[1:]
	}

	if len(d.buf) < MessageLengthMin {
		return Frame{}, ErrNeedMore
	}

	msgLen := int(d.buf[MessagePositionLen])
	seq := d.buf[MessagePositionSeq]
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax || seq&^MessageSeqMask != MessageDest {
		d.synchronized = false
		return Frame{}, ErrBadFrame
	}

	if len(d.buf) < msgLen {
		return Frame{}, ErrNeedMore
	}

	if d.buf[msgLen-MessageTrailerSync] != MessageValueSync {
		d.synchronized = false
		return Frame{}, ErrBadFrame
	}

	frameCRC := uint16(d.buf[msgLen-MessageTrailerCRC])<<8 |
		uint16(d.buf[msgLen-MessageTrailerCRC+1])
	if frameCRC != CRC16(d.buf[:msgLen-MessageTrailerSize]) {
		// Drop the whole frame, its trailing sync byte is intact
		d.buf = d.buf[msgLen:]
		return Frame{}, ErrBadCRC
	}

	payload := make([]byte, msgLen-MessageLengthMin)
	copy(payload, d.buf[MessageHeaderSize:msgLen-MessageTrailerSize])
	d.buf = d.buf[msgLen:]

	return Frame{Seq: seq & MessageSeqMask, Payload: payload}, nil
}
