package chat

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// DecodeMessage parses a single JSON object frame.
func DecodeMessage(frame []byte) (Message, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 || frame[0] != '{' {
		return Message{}, errors.Wrap(ErrMalformed, "frame is not a JSON object")
	}
	var m Message
	if err := json.Unmarshal(frame, &m); err != nil {
		return Message{}, errors.Wrapf(ErrMalformed, "decode frame: %v", err)
	}
	return m, nil
}

// Frame is one line of an inbound payload: either a decoded Message or the error
// that prevented decoding it.
type Frame struct {
	Index   int
	Message Message
	Err     error
}

// DecodeFrames splits a text payload into newline-delimited frames and decodes each
// independently, in payload order. A bad frame carries an ErrMalformed error naming
// its index and does not affect its siblings. Blank lines are skipped.
func DecodeFrames(payload []byte) []Frame {
	var frames []Frame
	for _, line := range bytes.Split(payload, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		f := Frame{Index: len(frames)}
		f.Message, f.Err = DecodeMessage(line)
		if f.Err != nil {
			f.Err = errors.WithMessagef(f.Err, "frame %d", f.Index)
		}
		frames = append(frames, f)
	}
	return frames
}

// Split separates decoded messages from frame errors, keeping order within each.
func Split(frames []Frame) ([]Message, []error) {
	var (
		msgs []Message
		errs []error
	)
	for _, f := range frames {
		if f.Err != nil {
			errs = append(errs, f.Err)
			continue
		}
		msgs = append(msgs, f.Message)
	}
	return msgs, errs
}

// EncodeOutbound builds the stream send frame for body.
func EncodeOutbound(body string) ([]byte, error) {
	b, err := json.Marshal(OutboundPayload{Message: body})
	if err != nil {
		return nil, errors.Wrap(err, "encode outbound frame")
	}
	return b, nil
}
