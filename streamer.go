package atrium

import "context"

// Streamer delivers at most one live assistant stream at a time.
//
// Start is fire-and-forget: it returns immediately and events arrive
// through onEvent, in arrival order, until a terminal event, an error, or
// cancellation. onError receives at most one terminal error; it is not
// called on normal completion. Starting while a stream is live supersedes
// it: the previous connection is torn down first and its late bytes are
// discarded, so one logical send action never has two sinks firing.
//
// Cancel guarantees that no further onEvent or onError call is made for
// the cancelled session once it returns. Cancel with no live stream is a
// no-op.
type Streamer interface {
	Start(ctx context.Context, q StreamQuery, onEvent func(Event), onError func(error))
	Cancel()
}
