package utils

import (
	"errors"
	"io"
	"strings"
	"testing"
)

type closeRecorder struct {
	io.Reader
	closed bool
	err    error
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return c.err
}

func TestObjectReader_CloseClosesReaderAndClient(t *testing.T) {
	reader := &closeRecorder{Reader: strings.NewReader("rows")}
	client := &closeRecorder{}
	rc := &objectReader{ReadCloser: reader, client: client}

	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !reader.closed {
		t.Fatal("object reader was not closed")
	}
	if !client.closed {
		t.Fatal("storage client was not closed")
	}
}

func TestObjectReader_ReaderCloseErrorWins(t *testing.T) {
	readerErr := errors.New("reader close failed")
	reader := &closeRecorder{Reader: strings.NewReader(""), err: readerErr}
	client := &closeRecorder{err: errors.New("client close failed")}
	rc := &objectReader{ReadCloser: reader, client: client}

	if err := rc.Close(); !errors.Is(err, readerErr) {
		t.Fatalf("expected the reader close error, got %v", err)
	}
	if !client.closed {
		t.Fatal("client must still be closed when the reader close fails")
	}
}
