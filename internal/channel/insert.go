package channel

import (
	"time"

	"onestore/internal/codec"
)

// Insert appends one new entry to a channel. head is the channel's current
// head hash, or "" for an empty channel. creationTimeMs of 0 defaults to the
// current wall-clock time in milliseconds, per §4.6. Insert first writes a
// CreationTime envelope wrapping data, then a LinkedListEntry referencing
// that envelope's hash, chained directly onto head: a single writer's insert
// is always a linear extension, never a divergence, so no merge walk is
// needed — Merge is reserved for reconciling two heads that diverged
// because they were each built on top of the same ancestor independently
// (e.g. by two replicas that raced before learning of each other's writes).
func Insert(access ObjectAccess, head codec.Hash, data codec.Hash, metadata []codec.Hash, creationTimeMs int64) (codec.Hash, error) {
	if creationTimeMs == 0 {
		creationTimeMs = time.Now().UnixMilli()
	}
	env := creationTimeEnvelope{Timestamp: creationTimeMs, Data: data}
	envHash, err := access.PutObject(CreationTimeRecipeName, env.encode())
	if err != nil {
		return "", err
	}
	e := Entry{CreationTimeHash: envHash, CreationTime: creationTimeMs, Data: data, Metadata: metadata, Previous: head}
	return access.PutObject(RecipeName, e.encode())
}
