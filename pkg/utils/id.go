package utils

import (
	"fmt"
	"sync/atomic"
	"time"
)

// seq disambiguates ids minted within the same nanosecond.
var seq uint64

// GenChatID returns a new chat id. Ids are opaque to callers but sort by
// creation time: the embedded timestamp is zero-padded so lexical order
// matches chronological order.
func GenChatID() string {
	return fmt.Sprintf("chat#%020d-%04d", time.Now().UTC().UnixNano(), atomic.AddUint64(&seq, 1)%10000)
}

// GenMessageID returns a new message id. Message ids address messages
// through the secondary index only; ordering inside a chat comes from
// message_ts, never from the id.
func GenMessageID() string {
	return fmt.Sprintf("msg#%020d-%04d", time.Now().UTC().UnixNano(), atomic.AddUint64(&seq, 1)%10000)
}

// lastTS backs NextMessageTS's monotonicity guarantee.
var lastTS int64

// NextMessageTS returns a strictly increasing timestamp in nanoseconds.
// Two sends landing in the same nanosecond still get distinct, ordered
// values, which keeps (chat_id, message_ts) unique and totally ordered
// within a chat partition.
func NextMessageTS() int64 {
	for {
		now := time.Now().UTC().UnixNano()
		last := atomic.LoadInt64(&lastTS)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTS, last, now) {
			return now
		}
	}
}
