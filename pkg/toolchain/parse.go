package toolchain

import (
	"regexp"
	"sort"
	"strings"

	"DevPanel/pkg/types"
)

var getpropLine = regexp.MustCompile(`^\[(.+?)\]:\s*\[(.*)\]$`)

// parseGetprop parses `adb shell getprop` lines of the form
// "[ro.product.model]: [Pixel 5]".
func parseGetprop(output string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		m := getpropLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		props[m[1]] = m[2]
	}
	return props
}

// parseKeyValue parses "Key: Value" lines as printed by ideviceinfo
func parseKeyValue(output string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		props[key] = strings.TrimSpace(value)
	}
	return props
}

// parsePMPackages parses `pm list packages` output into sorted packages
func parsePMPackages(output string) []types.AppPackage {
	var pkgs []types.AppPackage
	for _, line := range strings.Split(output, "\n") {
		id, ok := strings.CutPrefix(strings.TrimSpace(line), "package:")
		if !ok || id == "" {
			continue
		}
		pkgs = append(pkgs, types.AppPackage{ID: id})
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].ID < pkgs[j].ID })
	return pkgs
}

// parseInstallerList parses `ideviceinstaller -l`. The first line is a
// header. Older releases print "bundle - name - version", newer ones
// "bundle, "version", "name"".
func parseInstallerList(output string) []types.AppPackage {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	var pkgs []types.AppPackage
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if parts := strings.Split(line, " - "); len(parts) >= 2 {
			pkg := types.AppPackage{
				ID:      strings.TrimSpace(parts[0]),
				Name:    strings.TrimSpace(parts[1]),
				Version: types.Placeholder,
			}
			if len(parts) > 2 {
				pkg.Version = strings.TrimSpace(parts[2])
			}
			pkgs = append(pkgs, pkg)
			continue
		}
		if parts := strings.Split(line, ","); len(parts) >= 3 {
			pkgs = append(pkgs, types.AppPackage{
				ID:      unquote(parts[0]),
				Version: unquote(parts[1]),
				Name:    unquote(strings.Join(parts[2:], ",")),
			})
		}
	}
	return pkgs
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
