package runner

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Resolver maps a logical tool name ("adb", "scrcpy") to an executable path.
// App-local directories win over PATH so a bundled toolchain shadows a
// system one.
type Resolver struct {
	Dirs []string
	goos string
}

// NewResolver checks dirs in order before falling back to PATH
func NewResolver(dirs ...string) *Resolver {
	return &Resolver{Dirs: dirs, goos: runtime.GOOS}
}

// DefaultDirs returns the directories next to the running executable where
// bundled tools are looked up.
func DefaultDirs() []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir := filepath.Dir(exe)
	return []string{dir, filepath.Join(dir, "bin")}
}

// Resolve returns the app-local path for tool when one exists, the tool
// unchanged when it already names a path, and the bare name otherwise
// (exec resolves that through PATH).
func (r *Resolver) Resolve(tool string) string {
	if tool == "" || strings.ContainsRune(tool, '/') || strings.ContainsRune(tool, filepath.Separator) {
		return tool
	}
	name := tool
	if r.goos == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		name += ".exe"
	}
	for _, dir := range r.Dirs {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate
		}
	}
	return tool
}
