package event

import "errors"

// ErrTimedOut is returned by Queue.Push and TrySend when the channel stayed
// full for every attempt. The value has been dropped.
var ErrTimedOut = errors.New("event: queue full, push timed out")
