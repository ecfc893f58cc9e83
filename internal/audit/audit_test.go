package audit

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/localdns/syncd/internal/dnsrecord"
)

func openTestTrail(t *testing.T) *Trail {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	trail, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { trail.Close() })
	return trail
}

func TestRecordThenRecent(t *testing.T) {
	trail := openTestTrail(t)
	intent := dnsrecord.Intent{Record: dnsrecord.NewA("web.local", "10.0.0.1"), ContainerName: "web-1"}

	if err := trail.Record(FromIntent(OpAdd, intent, nil)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := trail.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Name != "web.local" || entries[0].Operation != OpAdd {
		t.Errorf("entry = %+v, want name=web.local op=add", entries[0])
	}
}

func TestRecordCapturesApplyError(t *testing.T) {
	trail := openTestTrail(t)
	intent := dnsrecord.Intent{Record: dnsrecord.NewA("web.local", "10.0.0.1"), ContainerName: "web-1"}

	if err := trail.Record(FromIntent(OpRemove, intent, errors.New("boom"))); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, _ := trail.Recent(1)
	if len(entries) != 1 || entries[0].Error != "boom" {
		t.Errorf("entries = %+v, want Error=boom", entries)
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	trail := openTestTrail(t)
	for i := 0; i < 5; i++ {
		name := "svc" + string(rune('a'+i)) + ".local"
		intent := dnsrecord.Intent{Record: dnsrecord.NewA(name, "10.0.0.1")}
		if err := trail.Record(FromIntent(OpAdd, intent, nil)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := trail.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}
}

func TestForContainerFiltersByContainerName(t *testing.T) {
	trail := openTestTrail(t)
	web := dnsrecord.Intent{Record: dnsrecord.NewA("web.local", "10.0.0.1"), ContainerName: "web-1"}
	api := dnsrecord.Intent{Record: dnsrecord.NewA("api.local", "10.0.0.2"), ContainerName: "api-1"}
	trail.Record(FromIntent(OpAdd, web, nil))
	trail.Record(FromIntent(OpAdd, api, nil))

	entries, err := trail.ForContainer("api-1", 10)
	if err != nil {
		t.Fatalf("ForContainer: %v", err)
	}
	if len(entries) != 1 || entries[0].ContainerName != "api-1" {
		t.Errorf("entries = %+v, want only api-1", entries)
	}
}
