package domain

import "math/rand/v2"

// Decorate prefixes name with a decoration picked from pool using rnd.
func Decorate(name string, pool []string, rnd *rand.Rand) string {
	if len(pool) == 0 || rnd == nil {
		return name
	}

	return pool[rnd.IntN(len(pool))] + " " + name
}
