// Package reconcile implements the one pure function at the center of the
// control loop: given desired local state and observed registry state,
// compute the minimal set of additions and removals that converges the
// registry toward desired, touching only entries this host owns.
package reconcile

import "github.com/localdns/syncd/internal/dnsrecord"

// Reconcile computes (toAdd, toRemove) for converging actual toward
// desired, scoped to localHost:
//
//	toAdd    = { d in desired | d not in actual (by equality key) }
//	toRemove = { a in actual  | a.Hostname == localHost && a not in desired }
//
// Equality between intents is by (record.Name, record.Value, record.Type);
// ownership metadata does not participate, so metadata-only differences
// never trigger churn. Intents owned by other hosts are never added to or
// removed by this computation -- the reconciler only adds what this host
// desires and removes what this host previously placed but no longer
// desires, preserving the at-most-one-writer-per-name convention among
// non-conflicting peers.
func Reconcile(desired, actual []dnsrecord.Intent, localHost string) (toAdd, toRemove []dnsrecord.Intent) {
	actualKeys := make(map[dnsrecord.Key]struct{}, len(actual))
	for _, a := range actual {
		actualKeys[a.EqualityKey()] = struct{}{}
	}

	desiredKeys := make(map[dnsrecord.Key]struct{}, len(desired))
	for _, d := range desired {
		desiredKeys[d.EqualityKey()] = struct{}{}
		if _, present := actualKeys[d.EqualityKey()]; !present {
			toAdd = append(toAdd, d)
		}
	}

	for _, a := range actual {
		if a.Hostname != localHost {
			continue
		}
		if _, stillDesired := desiredKeys[a.EqualityKey()]; !stillDesired {
			toRemove = append(toRemove, a)
		}
	}

	return toAdd, toRemove
}
