package proto

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tbxark/braj/pkg/braj/common"
)

const (
	// BufSize is the largest chunk a worker reads in one call.
	BufSize = 1024
	// Reply is the acknowledgment written after every read with data.
	Reply = "braj\n"
)

var replyBytes = []byte(Reply)

// WriteReply writes one acknowledgment.
func WriteReply(w io.Writer) error {
	n, err := w.Write(replyBytes)
	if err != nil {
		return err
	}
	if n != len(replyBytes) {
		return io.ErrShortWrite
	}
	return nil
}

// ReadReply reads exactly one acknowledgment and checks its content.
func ReadReply(r io.Reader) error {
	buf := make([]byte, len(replyBytes))
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if !bytes.Equal(buf, replyBytes) {
		return fmt.Errorf("%w: %q", common.ErrUnexpectedReply, buf)
	}
	return nil
}

// ReadReplies reads count consecutive acknowledgments.
func ReadReplies(r io.Reader, count int) error {
	for i := 0; i < count; i++ {
		if err := ReadReply(r); err != nil {
			return fmt.Errorf("reply %d/%d: %w", i+1, count, err)
		}
	}
	return nil
}
