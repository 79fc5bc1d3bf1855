package bridge

import (
	"context"
	"errors"

	"github.com/mfduar8766/browserautomation/internal/shared/mailbox"
)

// Transport is the single ordered message channel. Send never blocks;
// Receive returns payloads in send order.
type Transport struct {
	box *mailbox.Mailbox[[]byte]
}

// NewTransport creates an open transport.
func NewTransport() *Transport {
	return &Transport{box: mailbox.New[[]byte]()}
}

// Send enqueues a raw payload.
func (t *Transport) Send(payload []byte) error {
	if !t.box.Push(payload) {
		return ErrClosed
	}
	return nil
}

// Receive blocks for the next payload. It returns ErrClosed once the
// transport is closed and drained.
func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	payload, err := t.box.Pop(ctx)
	if errors.Is(err, mailbox.ErrClosed) {
		return nil, ErrClosed
	}
	return payload, err
}

// Pending returns the number of undelivered payloads.
func (t *Transport) Pending() int {
	return t.box.Len()
}

// Close stops accepting payloads. Queued payloads are still delivered.
func (t *Transport) Close() {
	t.box.Close()
}
