// Package identity generates opaque, human-readable agent names: a
// two-word adjective-noun pair in the style of the petname convention,
// with a process-global uniqueness registry and a hex fallback when the
// word lists are exhausted.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
)

var adjectives = []string{
	"quiet", "swift", "amber", "sly", "eager", "lucid", "brisk", "hollow",
	"gentle", "wry", "stark", "vivid", "mellow", "keen", "drowsy", "crisp",
	"bold", "faint", "nimble", "wistful", "placid", "rusty", "sable", "tidy",
	"spry", "dusky", "blunt", "sleek", "hushed", "bright", "grim", "fleet",
}

var nouns = []string{
	"heron", "otter", "maple", "cinder", "lantern", "marsh", "quartz", "wren",
	"badger", "thistle", "ferret", "ember", "pike", "willow", "moth", "brook",
	"sparrow", "lichen", "cobalt", "tundra", "plover", "basalt", "finch", "gourd",
	"osprey", "quince", "heather", "vole", "spindle", "larch", "grouse", "shale",
}

var (
	mu   sync.Mutex
	used = make(map[string]bool)
)

// New allocates a fresh, process-unique agent name. Collisions retry
// with a different random pair before falling back to a hex suffix.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; attempt < 20; attempt++ {
		name := fmt.Sprintf("%s-%s", pick(adjectives), pick(nouns))
		if !used[name] {
			used[name] = true
			return name
		}
	}

	suffix := randHex(4)
	name := fmt.Sprintf("%s-%s-%s", pick(adjectives), pick(nouns), suffix)
	used[name] = true
	return name
}

// Release frees a previously allocated name so it can be reused, called
// when a clone agent is disposed of.
func Release(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(used, name)
}

func pick(words []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return words[0]
	}
	return words[n.Int64()]
}

func randHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "0000"
	}
	return hex.EncodeToString(b)
}
