package registry

import (
	"testing"

	"DevPanel/pkg/types"
)

func dev(id, name string) types.Device {
	return types.Device{ID: id, Name: name, Model: "Pixel_5", Status: types.StatusOnline}
}

func ids(devices []types.Device) []string {
	out := make([]string, len(devices))
	for i, d := range devices {
		out[i] = d.ID
	}
	return out
}

func TestApplyAddsInOrder(t *testing.T) {
	r := New()
	diff, ok := r.Apply(1, []types.Device{dev("B", "b"), dev("A", "a")})
	if !ok {
		t.Fatal("first poll rejected")
	}
	if len(diff.Added) != 2 {
		t.Errorf("Added = %v", diff.Added)
	}
	if got := ids(r.Snapshot()); len(got) != 2 || got[0] != "B" || got[1] != "A" {
		t.Errorf("Snapshot order = %v", got)
	}
}

func TestApplyUpdatesInPlaceAndKeepsOrder(t *testing.T) {
	r := New()
	r.Apply(1, []types.Device{dev("A", "a"), dev("B", "b")})

	updated := dev("A", "Work phone")
	diff, _ := r.Apply(2, []types.Device{dev("B", "b"), updated, dev("C", "c")})

	if len(diff.Updated) != 1 || diff.Updated[0].Name != "Work phone" {
		t.Errorf("Updated = %v", diff.Updated)
	}
	if len(diff.Added) != 1 || diff.Added[0].ID != "C" {
		t.Errorf("Added = %v", diff.Added)
	}
	if got := ids(r.Snapshot()); got[0] != "A" || got[1] != "B" || got[2] != "C" {
		t.Errorf("Snapshot order = %v", got)
	}
	if d, _ := r.Lookup("A"); d.Name != "Work phone" {
		t.Errorf("Lookup(A) = %+v", d)
	}
}

func TestApplyUnchangedIsEmptyDiff(t *testing.T) {
	r := New()
	r.Apply(1, []types.Device{dev("A", "a")})
	diff, ok := r.Apply(2, []types.Device{dev("A", "a")})
	if !ok || !diff.Empty() {
		t.Errorf("diff = %+v ok=%v", diff, ok)
	}
}

func TestSelectionClearedWhenDeviceRemoved(t *testing.T) {
	r := New()
	r.Apply(1, []types.Device{dev("A", "a"), dev("B", "b")})
	if sel, changed := r.Select("A"); sel != "A" || !changed {
		t.Fatalf("Select(A) = %q, %v", sel, changed)
	}

	diff, _ := r.Apply(2, []types.Device{dev("B", "b")})

	if !diff.SelectionCleared {
		t.Error("expected SelectionCleared")
	}
	if len(diff.Removed) != 1 || diff.Removed[0].ID != "A" {
		t.Errorf("Removed = %v", diff.Removed)
	}
	if _, ok := r.CurrentSelection(); ok {
		t.Error("selection should be empty")
	}
	if _, ok := r.Lookup("A"); ok {
		t.Error("A should be gone")
	}
}

func TestRemovingOtherDeviceKeepsSelection(t *testing.T) {
	r := New()
	r.Apply(1, []types.Device{dev("A", "a"), dev("B", "b")})
	r.Select("A")
	diff, _ := r.Apply(2, []types.Device{dev("A", "a")})
	if diff.SelectionCleared {
		t.Error("selection cleared for unrelated removal")
	}
	if d, ok := r.CurrentSelection(); !ok || d.ID != "A" {
		t.Errorf("CurrentSelection = %+v %v", d, ok)
	}
}

func TestStalePollDiscarded(t *testing.T) {
	r := New()
	r.Apply(8, []types.Device{dev("A", "a")})

	diff, ok := r.Apply(7, []types.Device{})
	if ok {
		t.Fatal("seq 7 applied after seq 8")
	}
	if !diff.Empty() {
		t.Errorf("stale diff = %+v", diff)
	}
	if len(r.Snapshot()) != 1 {
		t.Error("stale poll changed the device set")
	}
	if _, ok := r.Apply(8, nil); ok {
		t.Error("duplicate seq applied")
	}
	if r.AppliedSeq() != 8 {
		t.Errorf("AppliedSeq = %d", r.AppliedSeq())
	}
}

func TestSelectUnknownClears(t *testing.T) {
	r := New()
	r.Apply(1, []types.Device{dev("A", "a")})
	r.Select("A")

	sel, changed := r.Select("ZZZ")
	if sel != "" || !changed {
		t.Errorf("Select(unknown) = %q, %v", sel, changed)
	}
	if _, changed := r.Select(""); changed {
		t.Error("clearing an empty selection reported a change")
	}
}

func TestApplyIgnoresDuplicateIDs(t *testing.T) {
	r := New()
	r.Apply(1, []types.Device{dev("A", "first"), dev("A", "second")})
	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].Name != "first" {
		t.Errorf("Snapshot = %+v", snap)
	}
}
