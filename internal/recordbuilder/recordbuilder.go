// Package recordbuilder derives DNS record intents from a container's
// labels. This is the "external, per-deployment" rule set spec.md treats as
// a collaborator (derive_intents); the label vocabulary below is a concrete
// default in the same spirit as the teacher's own label-reading helpers
// (internal/docker/labels.go reads "sentinel.policy" the same way this
// reads "dnssync.*").
package recordbuilder

import (
	"strings"
	"time"

	"github.com/moby/moby/api/types/container"

	"github.com/localdns/syncd/internal/dnsrecord"
)

// Label keys recognized on a container. A container may declare any number
// of A and CNAME records via comma-separated lists.
const (
	// LabelA is "name=value,name=value,..." -- value is an IP literal.
	LabelA = "dnssync.record.a"
	// LabelCNAME is "name=value,name=value,..." -- value is a DNS name.
	LabelCNAME = "dnssync.record.cname"
	// LabelHostIP overrides the IP substituted for bare-name A records
	// declared via LabelNames (below). Falls back to the container's
	// primary network IP when unset.
	LabelHostIP = "dnssync.host-ip"
	// LabelNames is a simpler convenience form: a comma-separated list of
	// bare names that should all resolve, as A records, to LabelHostIP (or
	// the container's own address).
	LabelNames = "dnssync.names"
)

// Derive turns a container's inspect result into the record intents it
// asserts. Returns nil if the container declares none -- callers should
// treat a nil/empty result as "nothing to track", matching the Python
// original's "if record_intents:" guard in sync_engine.py.
func Derive(hostname string, summary container.Summary, created time.Time, labels map[string]string, primaryIP string) []dnsrecord.Intent {
	var intents []dnsrecord.Intent
	containerName := strings.TrimPrefix(firstName(summary.Names), "/")

	ip := labels[LabelHostIP]
	if ip == "" {
		ip = primaryIP
	}

	for name, value := range parsePairs(labels[LabelA]) {
		intents = append(intents, newIntent(dnsrecord.NewA(name, value), hostname, containerName, created))
	}
	for name, value := range parsePairs(labels[LabelCNAME]) {
		intents = append(intents, newIntent(dnsrecord.NewCNAME(name, value), hostname, containerName, created))
	}
	if ip != "" {
		for _, name := range splitList(labels[LabelNames]) {
			intents = append(intents, newIntent(dnsrecord.NewA(name, ip), hostname, containerName, created))
		}
	}
	return intents
}

func newIntent(r dnsrecord.Record, hostname, containerName string, created time.Time) dnsrecord.Intent {
	return dnsrecord.Intent{
		Record:        r,
		Hostname:      hostname,
		ContainerName: containerName,
		Created:       created,
	}
}

func firstName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// parsePairs parses "name=value,name=value" into a map, skipping malformed
// entries rather than failing the whole container.
func parsePairs(raw string) map[string]string {
	out := make(map[string]string)
	for _, entry := range splitList(raw) {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
