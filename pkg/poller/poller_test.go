package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"DevPanel/pkg/runner"
	"DevPanel/pkg/types"
)

// fakeRunner answers commands by their joined argument string
type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	calls   []string
	delay   time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, c runner.Command, timeout time.Duration) (runner.Output, error) {
	key := c.String()
	f.mu.Lock()
	f.calls = append(f.calls, key)
	out, err := f.outputs[key], f.errs[key]
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return runner.Output{Stdout: out}, err
}

func (f *fakeRunner) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type adbSource struct{}

func (adbSource) ListCommand() runner.Command {
	return runner.Command{Tool: "adb", Args: []string{"devices", "-l"}}
}
func (adbSource) ParseListing(out string) []Entry { return ParseADBDevices(out) }
func (adbSource) NameCommand(id string) runner.Command {
	return runner.Command{Tool: "adb", Args: []string{"-s", id, "shell", "settings", "get", "global", "device_name"}}
}

func TestParseADBDevices(t *testing.T) {
	entries := ParseADBDevices("List of devices attached\nABC123\tdevice model:Pixel_5\n")
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Device.ID != "ABC123" || e.Device.Model != "Pixel_5" || e.Device.Status != types.StatusOnline {
		t.Errorf("Device = %+v", e.Device)
	}
	if !e.QueryName {
		t.Error("online device should get a name query")
	}
}

func TestParseADBDevicesStatuses(t *testing.T) {
	out := strings.Join([]string{
		"List of devices attached",
		"",
		"R58M123 unauthorized usb:1-1 transport_id:3",
		"emulator-5554          device product:sdk_gphone64 model:sdk_gphone64_x86_64 device:emu64x transport_id:1",
		"XYZ offline",
		"garbage",
		"",
	}, "\r\n")

	entries := ParseADBDevices(out)
	if len(entries) != 3 {
		t.Fatalf("got %d entries: %+v", len(entries), entries)
	}

	tests := []struct {
		id        string
		status    types.DeviceStatus
		name      string
		model     string
		queryName bool
	}{
		{"R58M123", types.StatusUnauthorized, types.NotAvailable, types.NotAvailable, false},
		{"emulator-5554", types.StatusOnline, types.Placeholder, "sdk_gphone64_x86_64", true},
		{"XYZ", types.StatusOffline, types.NotAvailable, types.NotAvailable, false},
	}
	for i, tt := range tests {
		d := entries[i].Device
		if d.ID != tt.id || d.Status != tt.status || d.Name != tt.name || d.Model != tt.model || entries[i].QueryName != tt.queryName {
			t.Errorf("entry %d = %+v (query=%v), want %+v", i, d, entries[i].QueryName, tt)
		}
	}
}

func TestParseADBDevicesHeaderOnly(t *testing.T) {
	if got := ParseADBDevices("List of devices attached\n\n"); len(got) != 0 {
		t.Errorf("got %+v", got)
	}
	if got := ParseADBDevices(""); len(got) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestParseADBDevicesMissingModel(t *testing.T) {
	entries := ParseADBDevices("List of devices attached\nABC device usb:1-1\n")
	if len(entries) != 1 || entries[0].Device.Model != types.Placeholder {
		t.Errorf("entries = %+v", entries)
	}
}

func TestParseUDIDList(t *testing.T) {
	entries := ParseUDIDList("00008030-001A2B3C4D5E6F70\n\n  abcdef0123456789abcdef0123456789abcdef01 (USB)\n")
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].Device.ID != "00008030-001A2B3C4D5E6F70" || entries[1].Device.ID != "abcdef0123456789abcdef0123456789abcdef01" {
		t.Errorf("ids = %q, %q", entries[0].Device.ID, entries[1].Device.ID)
	}
	for _, e := range entries {
		if e.Device.Status != types.StatusOnline || !e.QueryName {
			t.Errorf("entry = %+v", e)
		}
	}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Pixel of Ana\n", "Pixel of Ana", true},
		{"null\n", "", false},
		{"  \n", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseName(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestPollOnceResolvesNames(t *testing.T) {
	fr := &fakeRunner{
		outputs: map[string]string{
			"adb devices -l": "List of devices attached\nABC123\tdevice model:Pixel_5\nDEF456 device model:SM_G991B\n",
			"adb -s ABC123 shell settings get global device_name": "Ana's Pixel\n",
		},
		errs: map[string]error{
			"adb -s DEF456 shell settings get global device_name": errors.New("device offline"),
		},
	}
	p := New(adbSource{}, fr, func(Result) {}, DefaultOptions())

	res := p.PollOnce(context.Background())
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if res.Seq != 1 {
		t.Errorf("Seq = %d", res.Seq)
	}
	if len(res.Devices) != 2 {
		t.Fatalf("Devices = %+v", res.Devices)
	}
	if res.Devices[0].Name != "Ana's Pixel" {
		t.Errorf("name = %q", res.Devices[0].Name)
	}
	if res.Devices[1].Name != types.Placeholder {
		t.Errorf("failed name query should give placeholder, got %q", res.Devices[1].Name)
	}
}

func TestUnauthorizedDeviceGetsNoNameQuery(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]string{
		"adb devices -l": "List of devices attached\nR58M123 unauthorized usb:1-1\n",
	}}
	p := New(adbSource{}, fr, func(Result) {}, DefaultOptions())

	res := p.PollOnce(context.Background())
	if len(res.Devices) != 1 || res.Devices[0].Status != types.StatusUnauthorized {
		t.Fatalf("Devices = %+v", res.Devices)
	}
	if res.Devices[0].Name != types.NotAvailable || res.Devices[0].Model != types.NotAvailable {
		t.Errorf("Device = %+v", res.Devices[0])
	}
	if n := fr.callCount("adb -s"); n != 0 {
		t.Errorf("issued %d secondary queries, want 0", n)
	}
}

func TestListingFailureIsReported(t *testing.T) {
	fr := &fakeRunner{errs: map[string]error{"adb devices -l": &runner.SpawnError{Path: "adb", Err: errors.New("not found")}}}
	p := New(adbSource{}, fr, func(Result) {}, DefaultOptions())

	res := p.PollOnce(context.Background())
	var spawnErr *runner.SpawnError
	if !errors.As(res.Err, &spawnErr) {
		t.Errorf("Err = %v", res.Err)
	}
}

func TestSequenceIncreases(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]string{"adb devices -l": "List of devices attached\n"}}
	p := New(adbSource{}, fr, func(Result) {}, DefaultOptions())
	a := p.PollOnce(context.Background())
	b := p.PollOnce(context.Background())
	if b.Seq <= a.Seq {
		t.Errorf("seq %d then %d", a.Seq, b.Seq)
	}
}

func TestStartPollsAndRefreshNow(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]string{"adb devices -l": "List of devices attached\n"}}
	results := make(chan Result, 16)
	opts := DefaultOptions()
	opts.Interval = time.Hour
	p := New(adbSource{}, fr, func(r Result) { results <- r }, opts)

	p.Start(context.Background())
	defer p.Stop()

	select {
	case <-results:
	case <-time.After(5 * time.Second):
		t.Fatal("no initial poll")
	}

	if !p.RefreshNow() {
		t.Fatal("RefreshNow rejected")
	}
	select {
	case r := <-results:
		if r.Seq < 2 {
			t.Errorf("Seq = %d", r.Seq)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RefreshNow did not poll")
	}
}

func TestRefreshNowRateLimited(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]string{"adb devices -l": "List of devices attached\n"}}
	opts := DefaultOptions()
	opts.RefreshBurst = 1
	p := New(adbSource{}, fr, func(Result) {}, opts)

	if !p.RefreshNow() {
		t.Fatal("first refresh rejected")
	}
	if p.RefreshNow() {
		t.Error("second immediate refresh should be limited")
	}
}

func TestStopWaitsForInflightPoll(t *testing.T) {
	fr := &fakeRunner{
		outputs: map[string]string{"adb devices -l": "List of devices attached\n"},
		delay:   100 * time.Millisecond,
	}
	var mu sync.Mutex
	delivered := 0
	p := New(adbSource{}, fr, func(Result) {
		mu.Lock()
		delivered++
		mu.Unlock()
	}, DefaultOptions())

	p.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	p.Stop()

	mu.Lock()
	after := delivered
	mu.Unlock()
	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if delivered != after {
		t.Error("result delivered after Stop returned")
	}
}
