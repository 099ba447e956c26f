package emojipool

import (
	"slices"
	"strings"

	"github.com/kyokomi/emoji/v2"
)

// Default returns every emoji known to the emoji table, sorted and without
// duplicates so that a seeded random source picks reproducibly.
func Default() []string {
	codes := emoji.CodeMap()

	pool := make([]string, 0, len(codes))
	for _, e := range codes {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}

		pool = append(pool, e)
	}

	slices.Sort(pool)

	return slices.Compact(pool)
}
