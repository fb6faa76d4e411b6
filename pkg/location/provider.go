package location

import "context"

// PositionSource is one underlying mechanism capable of producing fixes.
//
// Subscribe starts delivering asynchronous fix updates on the returned
// channel until ctx is cancelled; the source must stop sending and release
// its resources when the context ends. LastKnown reports the most recent
// fix the source has ever produced, if any.
type PositionSource interface {
	Kind() SourceKind
	Available() bool
	Subscribe(ctx context.Context) (<-chan Fix, error)
	LastKnown() (Fix, bool)
}
