package poller

import (
	"strings"

	"DevPanel/pkg/types"
)

// Entry is one device from a listing. QueryName is set when the device is
// ready and its display name has to be fetched separately.
type Entry struct {
	Device    types.Device
	QueryName bool
}

// ParseADBDevices parses `adb devices -l`. The first line is a header and
// is skipped regardless of its content.
func ParseADBDevices(output string) []Entry {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}

	var entries []Entry
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		id, state := fields[0], fields[1]
		if state != "device" {
			entries = append(entries, Entry{Device: types.Device{
				ID:     id,
				Name:   types.NotAvailable,
				Model:  types.NotAvailable,
				Status: types.ParseADBStatus(state),
			}})
			continue
		}

		model := types.Placeholder
		for _, f := range fields[2:] {
			if v, ok := strings.CutPrefix(f, "model:"); ok && v != "" {
				model = v
				break
			}
		}
		entries = append(entries, Entry{
			Device: types.Device{
				ID:     id,
				Name:   types.Placeholder,
				Model:  model,
				Status: types.StatusOnline,
			},
			QueryName: true,
		})
	}
	return entries
}

// ParseUDIDList parses `idevice_id -l`: one UDID per non-blank line
func ParseUDIDList(output string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(output, "\n") {
		udid := strings.TrimSpace(line)
		if udid == "" {
			continue
		}
		// newer libimobiledevice appends " (USB)" or " (Network)"
		if i := strings.IndexByte(udid, ' '); i > 0 {
			udid = udid[:i]
		}
		entries = append(entries, Entry{
			Device: types.Device{
				ID:     udid,
				Name:   types.Placeholder,
				Model:  types.Placeholder,
				Status: types.StatusOnline,
			},
			QueryName: true,
		})
	}
	return entries
}

// ParseName cleans the output of a name query. Empty output and the
// literal "null" (unset Android setting) yield ok=false.
func ParseName(output string) (string, bool) {
	name := strings.TrimSpace(output)
	if name == "" || name == "null" {
		return "", false
	}
	return name, true
}
