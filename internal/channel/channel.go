// Package channel implements component C6: a named, append-only linked
// list of CreationTime envelopes. Each entry points at its predecessor by
// hash; a channel's current head is merged by walking both chains in
// parallel and ordering divergent entries by (creationTime, creationTimeHash).
package channel

import (
	"errors"
	"fmt"

	"onestore/internal/codec"
	"onestore/internal/recipe"
)

// ErrDisjointChannels is returned by Merge when the two chains share no
// common ancestor entry — per §4.6 this should not occur for channels that
// share a genesis entry, so it signals a programming error or data
// corruption rather than a routine conflict.
var ErrDisjointChannels = errors.New("channel: chains share no common ancestor")

// RecipeName is the recipe under which LinkedListEntry objects are stored.
const RecipeName = "LinkedListEntry"

// CreationTimeRecipeName is the recipe under which CreationTime envelopes
// are stored. A LinkedListEntry never embeds a timestamp directly — it
// references a CreationTime envelope by hash, and that envelope in turn
// references the entry's actual payload (§3 "CreationTime envelope").
const CreationTimeRecipeName = "CreationTime"

// Recipe returns the recipe for a channel's linked-list entries, to be
// registered once at process start-up.
func Recipe() *recipe.Recipe {
	return &recipe.Recipe{
		Name: RecipeName,
		Rules: []recipe.Rule{
			{ItemProp: "data", ItemType: recipe.TypeReferenceToObj, ReferenceTypeName: CreationTimeRecipeName},
			{ItemProp: "metadata", ItemType: recipe.TypeArray, Optional: true,
				Element: &recipe.Rule{ItemType: recipe.TypeReferenceToBlob}},
			{ItemProp: "previous", ItemType: recipe.TypeReferenceToObj, Optional: true, ReferenceTypeName: RecipeName},
		},
	}
}

// CreationTimeRecipe returns the recipe for the CreationTime envelope that
// wraps every LinkedListEntry's payload with a timestamp.
func CreationTimeRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		Name: CreationTimeRecipeName,
		Rules: []recipe.Rule{
			{ItemProp: "timestamp", ItemType: recipe.TypeInteger},
			{ItemProp: "data", ItemType: recipe.TypeReferenceToBlob},
		},
	}
}

// Entry is the decoded, typed view of a LinkedListEntry joined with the
// CreationTime envelope it references: CreationTimeHash/CreationTime/Data
// come from the envelope, everything else from the LinkedListEntry itself.
type Entry struct {
	Hash             codec.Hash // the LinkedListEntry's own hash
	CreationTimeHash codec.Hash // hash of the CreationTime envelope; also LinkedListEntry.data
	CreationTime     int64
	Data             codec.Hash // the envelope's payload reference
	Metadata         []codec.Hash
	Previous         codec.Hash // zero value means "no previous entry" (genesis)
}

func (e Entry) hasPrevious() bool { return e.Previous != "" }

// less orders entries by the spec's (creationTime, creationTimeHash) tuple,
// ascending. A strictly *larger* tuple is considered "more recent" by the
// merge walk. The tie-break is the CreationTime envelope's own hash, not the
// LinkedListEntry's — Merge rebuilds entries around existing envelopes, so
// one envelope can sit under several LinkedListEntry objects, and the spec
// names the envelope hash explicitly as the canonical tie-break key.
func less(a, b Entry) bool {
	if a.CreationTime != b.CreationTime {
		return a.CreationTime < b.CreationTime
	}
	return a.CreationTimeHash < b.CreationTimeHash
}

// decodeLinkedListEntry decodes the LinkedListEntry half of an Entry: the
// envelope-related fields (CreationTime, Data) are filled in separately by
// joining in the CreationTime envelope the decoded CreationTimeHash points at.
func decodeLinkedListEntry(h codec.Hash, obj codec.Object) (Entry, error) {
	e := Entry{Hash: h}
	data, ok := obj["data"].(string)
	if !ok {
		return Entry{}, fmt.Errorf("channel: entry %s missing data reference", h)
	}
	e.CreationTimeHash = codec.Hash(data)
	if meta, ok := obj["metadata"].([]interface{}); ok {
		for _, m := range meta {
			if s, ok := m.(string); ok {
				e.Metadata = append(e.Metadata, codec.Hash(s))
			}
		}
	}
	if prev, ok := obj["previous"].(string); ok {
		e.Previous = codec.Hash(prev)
	}
	return e, nil
}

func (e Entry) encode() codec.Object {
	obj := codec.Object{"data": string(e.CreationTimeHash)}
	if len(e.Metadata) > 0 {
		meta := make([]interface{}, len(e.Metadata))
		for i, m := range e.Metadata {
			meta[i] = string(m)
		}
		obj["metadata"] = meta
	}
	if e.hasPrevious() {
		obj["previous"] = string(e.Previous)
	}
	return obj
}

// creationTimeEnvelope is the decoded view of a CreationTime envelope.
type creationTimeEnvelope struct {
	Timestamp int64
	Data      codec.Hash
}

func decodeCreationTime(h codec.Hash, obj codec.Object) (creationTimeEnvelope, error) {
	ts, ok := obj["timestamp"]
	if !ok {
		return creationTimeEnvelope{}, fmt.Errorf("channel: envelope %s missing timestamp", h)
	}
	var env creationTimeEnvelope
	switch v := ts.(type) {
	case int64:
		env.Timestamp = v
	case float64:
		env.Timestamp = int64(v)
	default:
		return creationTimeEnvelope{}, fmt.Errorf("channel: envelope %s has non-numeric timestamp", h)
	}
	data, ok := obj["data"].(string)
	if !ok {
		return creationTimeEnvelope{}, fmt.Errorf("channel: envelope %s missing data", h)
	}
	env.Data = codec.Hash(data)
	return env, nil
}

func (env creationTimeEnvelope) encode() codec.Object {
	return codec.Object{"timestamp": env.Timestamp, "data": string(env.Data)}
}
