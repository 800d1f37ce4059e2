package correlation

import (
	"testing"
	"time"
)

func TestStore_RecordAndLookup(t *testing.T) {
	store := NewStore(0)
	store.Record("wamid.1", "t1", "+1")

	e, ok := store.Lookup("wamid.1")
	if !ok {
		t.Fatal("entry not found")
	}
	if e.TenantID != "t1" || e.Phone != "+1" {
		t.Fatalf("entry = %+v", e)
	}
	if _, ok := store.Lookup("wamid.other"); ok {
		t.Fatal("unknown id resolved")
	}
}

func TestStore_ExpiredEntryNotReturned(t *testing.T) {
	store := NewStore(time.Hour)
	store.Record("wamid.1", "t1", "+1")

	store.mu.Lock()
	e := store.entries["wamid.1"]
	e.At = time.Now().Add(-2 * time.Hour)
	store.entries["wamid.1"] = e
	store.mu.Unlock()

	if _, ok := store.Lookup("wamid.1"); ok {
		t.Fatal("expired entry resolved")
	}
}

func TestStore_DropCustomer(t *testing.T) {
	store := NewStore(0)
	store.Record("wamid.1", "t1", "+1")
	store.Record("wamid.2", "t1", "+1")
	store.Record("wamid.3", "t1", "+2")

	store.DropCustomer("t1", "+1")
	if _, ok := store.Lookup("wamid.1"); ok {
		t.Fatal("entry for dropped customer resolved")
	}
	if _, ok := store.Lookup("wamid.3"); !ok {
		t.Fatal("unrelated entry dropped")
	}
}

func TestStore_Sweep(t *testing.T) {
	store := NewStore(time.Hour)
	store.Record("wamid.old", "t1", "+1")
	store.Record("wamid.new", "t1", "+2")

	store.mu.Lock()
	e := store.entries["wamid.old"]
	e.At = time.Now().Add(-3 * time.Hour)
	store.entries["wamid.old"] = e
	store.mu.Unlock()

	if removed := store.Sweep(time.Now()); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if _, ok := store.Lookup("wamid.new"); !ok {
		t.Fatal("fresh entry swept")
	}
}
