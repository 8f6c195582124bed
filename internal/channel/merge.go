package channel

import (
	"fmt"

	"onestore/internal/codec"
	"onestore/internal/recipe"
)

// ObjectAccess is the storage surface channel needs: fetching
// LinkedListEntry objects by hash and persisting newly-built ones. A
// store.Store satisfies this structurally.
type ObjectAccess interface {
	GetObject(h codec.Hash) (string, codec.Object, error)
	PutObject(typeName string, obj codec.Object) (codec.Hash, error)
}

func fetch(access ObjectAccess, reg *recipe.Registry, h codec.Hash) (Entry, error) {
	typeName, obj, err := access.GetObject(h)
	if err != nil {
		return Entry{}, err
	}
	if typeName != RecipeName {
		return Entry{}, fmt.Errorf("channel: %s is a %s, not a %s", h, typeName, RecipeName)
	}
	e, err := decodeLinkedListEntry(h, obj)
	if err != nil {
		return Entry{}, err
	}

	envTypeName, envObj, err := access.GetObject(e.CreationTimeHash)
	if err != nil {
		return Entry{}, err
	}
	if envTypeName != CreationTimeRecipeName {
		return Entry{}, fmt.Errorf("channel: %s is a %s, not a %s", e.CreationTimeHash, envTypeName, CreationTimeRecipeName)
	}
	env, err := decodeCreationTime(e.CreationTimeHash, envObj)
	if err != nil {
		return Entry{}, err
	}
	e.CreationTime = env.Timestamp
	e.Data = env.Data
	return e, nil
}

// Merge reconciles two heads of the same channel: it walks both chains
// simultaneously following Previous, each step advancing whichever side
// currently holds the strictly larger (creationTime, creationTimeHash)
// tuple, until both walkers land on the same entry (the lowest common
// ancestor). The entries collected along the way are then re-chained,
// most-recent-first, on top of that ancestor, and the new head is returned.
func Merge(access ObjectAccess, reg *recipe.Registry, h1, h2 codec.Hash) (codec.Hash, error) {
	if h1 == h2 {
		return h1, nil
	}
	if h1 == "" {
		return h2, nil
	}
	if h2 == "" {
		return h1, nil
	}

	e1, err := fetch(access, reg, h1)
	if err != nil {
		return "", err
	}
	e2, err := fetch(access, reg, h2)
	if err != nil {
		return "", err
	}

	var collected []Entry
	for e1.Hash != e2.Hash {
		if less(e1, e2) {
			collected = append(collected, e2)
			if !e2.hasPrevious() {
				return "", ErrDisjointChannels
			}
			e2, err = fetch(access, reg, e2.Previous)
		} else {
			collected = append(collected, e1)
			if !e1.hasPrevious() {
				return "", ErrDisjointChannels
			}
			e1, err = fetch(access, reg, e1.Previous)
		}
		if err != nil {
			return "", err
		}
	}
	lca := e1 // == e2

	// collected holds every entry skipped on either side, in the reverse
	// order encountered (most-recent-first per side, but interleaved); sort
	// descending by (creationTime, creationTimeHash) so the rebuilt chain
	// matches §8's "merged chain has times in descending order" property.
	sortDescending(collected)

	head := lca.Hash
	for i := len(collected) - 1; i >= 0; i-- {
		e := collected[i]
		e.Previous = head
		newObj := e.encode()
		newHash, err := access.PutObject(RecipeName, newObj)
		if err != nil {
			return "", err
		}
		head = newHash
	}
	return head, nil
}

func sortDescending(entries []Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && less(entries[j-1], entries[j]); j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}
