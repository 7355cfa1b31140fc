package eliza

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"tg-digester/internal/domain"
)

const (
	dataPrefix    = "data:"
	doneMarker    = "[DONE]"
	maxFrameBytes = 1 << 20
)

// Stream отдаёт ленивую конечную последовательность JSON-чанков из SSE-потока.
// Повторно прочитать поток нельзя.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	chunk   json.RawMessage
	err     error
	done    bool
}

func newStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	return &Stream{body: body, scanner: scanner}
}

// Next продвигает поток к следующему чанку.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if payload == doneMarker {
			s.finish(nil)
			return false
		}
		if !json.Valid([]byte(payload)) {
			s.finish(&domain.MalformedResponseError{Raw: payload, Err: errors.New("чанк потока не является JSON")})
			return false
		}
		s.chunk = json.RawMessage(payload)
		return true
	}
	s.finish(s.scanner.Err())
	return false
}

// Chunk возвращает текущий чанк.
func (s *Stream) Chunk() json.RawMessage {
	return s.chunk
}

// Decode декодирует текущий чанк в v.
func (s *Stream) Decode(v any) error {
	return json.Unmarshal(s.chunk, v)
}

// Err возвращает ошибку, прервавшую поток.
func (s *Stream) Err() error {
	return s.err
}

// Close освобождает соединение.
func (s *Stream) Close() error {
	s.done = true
	s.chunk = nil
	return s.body.Close()
}

func (s *Stream) finish(err error) {
	s.done = true
	s.chunk = nil
	s.err = err
	_ = s.body.Close()
}
