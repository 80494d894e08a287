// Package registry holds the authoritative set of attached devices and the
// current selection.
package registry

import (
	"sync"

	"DevPanel/pkg/logger"
	"DevPanel/pkg/types"
)

// Diff describes what one applied poll changed
type Diff struct {
	Added            []types.Device
	Removed          []types.Device
	Updated          []types.Device
	SelectionCleared bool
}

// Empty reports whether the poll changed nothing
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0 && !d.SelectionCleared
}

// Registry is written from the dispatch loop and read from anywhere.
type Registry struct {
	mu         sync.RWMutex
	order      []string
	devices    map[string]*types.Device
	selection  string
	appliedSeq uint64
}

func New() *Registry {
	return &Registry{devices: make(map[string]*types.Device)}
}

// Apply replaces the device set with the result of poll seq. Results older
// than the last applied one are discarded and ok is false.
func (r *Registry) Apply(seq uint64, devices []types.Device) (diff Diff, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seq <= r.appliedSeq && r.appliedSeq != 0 {
		logger.PollLog().Uint64("seq", seq).Uint64("applied", r.appliedSeq).Msg("Discarding stale poll")
		return Diff{}, false
	}
	r.appliedSeq = seq

	seen := make(map[string]bool, len(devices))
	for _, d := range devices {
		if d.ID == "" || seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		if existing, ok := r.devices[d.ID]; ok {
			if *existing != d {
				*existing = d
				diff.Updated = append(diff.Updated, d)
			}
			continue
		}
		dev := d
		r.devices[d.ID] = &dev
		r.order = append(r.order, d.ID)
		diff.Added = append(diff.Added, d)
	}

	kept := r.order[:0]
	for _, id := range r.order {
		if seen[id] {
			kept = append(kept, id)
			continue
		}
		diff.Removed = append(diff.Removed, *r.devices[id])
		delete(r.devices, id)
		if r.selection == id {
			r.selection = ""
			diff.SelectionCleared = true
		}
	}
	r.order = kept

	if !diff.Empty() {
		logger.DeviceLog().
			Int("added", len(diff.Added)).
			Int("removed", len(diff.Removed)).
			Int("updated", len(diff.Updated)).
			Bool("selectionCleared", diff.SelectionCleared).
			Msg("Device set changed")
	}
	return diff, true
}

// Snapshot returns the devices in the order they were first seen
func (r *Registry) Snapshot() []types.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Device, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.devices[id])
	}
	return out
}

// Lookup returns the device with id
func (r *Registry) Lookup(id string) (types.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return types.Device{}, false
	}
	return *d, true
}

// Select makes id the selection. An unknown id clears it. It returns the
// resulting selection and whether it changed.
func (r *Registry) Select(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[id]; !ok {
		id = ""
	}
	changed := r.selection != id
	r.selection = id
	return id, changed
}

// CurrentSelection returns the selected device, if it is still present
func (r *Registry) CurrentSelection() (types.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.selection == "" {
		return types.Device{}, false
	}
	d, ok := r.devices[r.selection]
	if !ok {
		return types.Device{}, false
	}
	return *d, true
}

// SelectedID returns the selected id or ""
func (r *Registry) SelectedID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selection
}

// AppliedSeq is the sequence of the last applied poll
func (r *Registry) AppliedSeq() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.appliedSeq
}
