package feature

import (
	"hash/fnv"
	"math/rand/v2"
)

// Buckets is the number of rollout buckets identities are distributed over.
const Buckets = 100

// Evaluate decides whether the feature is on for the given identity on the
// given platform. It is a pure function over the feature snapshot: no
// locks, no I/O, no side effects, so it can run on every request path.
//
// Precedence: retirement and the Enabled master switch force "off", then
// platform scoping, then the rollout percentage. At the boundaries the hash
// is never consulted: 100 is always on, 0 is always off.
//
// For a non-empty targetKey the decision is deterministic across calls and
// process restarts, and monotonic in the percentage: an identity that is on
// at p stays on at every p' > p, because its bucket is fixed and the
// comparison is bucket < percentage.
//
// An empty targetKey degrades to a request-scoped probability check. That
// path is explicitly non-deterministic: anonymous callers may observe
// different results on repeated calls.
func Evaluate(f Feature, platform Platform, targetKey string) bool {
	if f.Retired || !f.Enabled {
		return false
	}
	if !f.HasPlatform(platform) {
		return false
	}
	if f.RolloutPercentage >= Buckets {
		return true
	}
	if f.RolloutPercentage <= 0 {
		return false
	}

	if targetKey == "" {
		return rand.IntN(Buckets) < f.RolloutPercentage
	}

	return int(Bucket(f.Name, targetKey)) < f.RolloutPercentage
}

// Bucket returns the stable rollout bucket in [0,100) for an identity.
// FNV-1a over the UTF-8 bytes of "name:targetKey" is used deliberately: it
// has no per-process seed, so a given identity lands in the same bucket on
// every node and across restarts.
func Bucket(name, targetKey string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))      //nolint:errcheck // fnv never fails
	h.Write([]byte(":"))       //nolint:errcheck
	h.Write([]byte(targetKey)) //nolint:errcheck
	return h.Sum32() % Buckets
}
