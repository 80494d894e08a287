package toolchain

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"DevPanel/pkg/types"
)

const transferTimeout = 5 * time.Minute

// lsDate matches both toybox ("2024-01-31 12:00") and BSD ("Jan 31 12:00",
// "Jan 31  2023") timestamps.
var lsDate = regexp.MustCompile(`(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2})|([A-Z][a-z]{2}\s+\d{1,2}\s+(\d{2}:\d{2}|\d{4}))`)

func cleanRemote(p string) string {
	return path.Clean("/" + p)
}

// shellQuote quotes p for the device shell; adb joins shell arguments with
// spaces before handing them over.
func shellQuote(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}

func checkTransfer(localPath, remotePath string) error {
	if localPath == "" {
		return fmt.Errorf("%w: local path is required", ErrInvalidParams)
	}
	if remotePath == "" {
		return fmt.Errorf("%w: remote path is required", ErrInvalidParams)
	}
	return nil
}

func checkDelete(remotePath string) (string, error) {
	if remotePath == "" {
		return "", fmt.Errorf("%w: remote path is required", ErrInvalidParams)
	}
	p := cleanRemote(remotePath)
	if p == "/" {
		return "", fmt.Errorf("%w: refusing to delete the root directory", ErrInvalidParams)
	}
	return p, nil
}

// ListFilesPlan lists dir with a trailing slash so symlinked directories
// such as /sdcard show their contents.
func (a *Android) ListFilesPlan(deviceID, dir string) (Plan, error) {
	p := cleanRemote(dir)
	if p != "/" {
		p += "/"
	}
	return Plan{Op: "list-files", Steps: []Step{{Cmd: a.adb(deviceID, "shell", "ls", "-la", shellQuote(p))}}}, nil
}

func (a *Android) PushFilePlan(deviceID, localPath, remotePath string) (Plan, error) {
	if err := checkTransfer(localPath, remotePath); err != nil {
		return Plan{}, err
	}
	if err := requireFile(localPath, "local file"); err != nil {
		return Plan{}, err
	}
	return Plan{
		Op:      "push-file",
		Steps:   []Step{{Cmd: a.adb(deviceID, "push", localPath, cleanRemote(remotePath))}},
		Timeout: transferTimeout,
	}, nil
}

func (a *Android) PullFilePlan(deviceID, remotePath, localPath string) (Plan, error) {
	if err := checkTransfer(localPath, remotePath); err != nil {
		return Plan{}, err
	}
	if err := requireDir(filepath.Dir(localPath), "destination directory"); err != nil {
		return Plan{}, err
	}
	return Plan{
		Op:      "pull-file",
		Steps:   []Step{{Cmd: a.adb(deviceID, "pull", cleanRemote(remotePath), localPath)}},
		Timeout: transferTimeout,
	}, nil
}

func (a *Android) DeleteFilePlan(deviceID, remotePath string) (Plan, error) {
	p, err := checkDelete(remotePath)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Op: "delete-file", Steps: []Step{{Cmd: a.adb(deviceID, "shell", "rm", "-rf", shellQuote(p))}}}, nil
}

func (a *Android) ParseFileList(dir, output string) []types.FileEntry {
	return parseLongListing(dir, output)
}

// ListFilesPlan lists dir through AFC; paths are relative to the media
// partition.
func (i *IOS) ListFilesPlan(deviceID, dir string) (Plan, error) {
	return Plan{Op: "list-files", Steps: []Step{{Cmd: tool("idevicefs", deviceID, "ls", "-la", cleanRemote(dir))}}}, nil
}

func (i *IOS) PushFilePlan(deviceID, localPath, remotePath string) (Plan, error) {
	if err := checkTransfer(localPath, remotePath); err != nil {
		return Plan{}, err
	}
	if err := requireFile(localPath, "local file"); err != nil {
		return Plan{}, err
	}
	return Plan{
		Op:      "push-file",
		Steps:   []Step{{Cmd: tool("idevicefs", deviceID, "put", localPath, cleanRemote(remotePath))}},
		Timeout: transferTimeout,
	}, nil
}

func (i *IOS) PullFilePlan(deviceID, remotePath, localPath string) (Plan, error) {
	if err := checkTransfer(localPath, remotePath); err != nil {
		return Plan{}, err
	}
	if err := requireDir(filepath.Dir(localPath), "destination directory"); err != nil {
		return Plan{}, err
	}
	return Plan{
		Op:      "pull-file",
		Steps:   []Step{{Cmd: tool("idevicefs", deviceID, "get", cleanRemote(remotePath), localPath)}},
		Timeout: transferTimeout,
	}, nil
}

func (i *IOS) DeleteFilePlan(deviceID, remotePath string) (Plan, error) {
	p, err := checkDelete(remotePath)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Op: "delete-file", Steps: []Step{{Cmd: tool("idevicefs", deviceID, "rm", p)}}}, nil
}

func (i *IOS) ParseFileList(dir, output string) []types.FileEntry {
	return parseLongListing(dir, output)
}

// parseLongListing parses `ls -la` output. Columns before the timestamp
// vary between implementations, so the timestamp anchors each line: the
// mode is the first field, the size the last field before the date and
// the name everything after it.
func parseLongListing(dir, output string) []types.FileEntry {
	dir = cleanRemote(dir)
	var files []types.FileEntry
	for _, line := range strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "total ") {
			continue
		}
		loc := lsDate.FindStringIndex(line)
		if loc == nil {
			continue
		}
		before := strings.Fields(line[:loc[0]])
		if len(before) == 0 {
			continue
		}
		mode := before[0]
		size, _ := strconv.ParseInt(before[len(before)-1], 10, 64)

		name := strings.TrimSpace(line[loc[1]:])
		isDir := strings.HasPrefix(mode, "d")
		if strings.HasPrefix(mode, "l") {
			if link, _, ok := strings.Cut(name, " -> "); ok {
				name = link
			}
			isDir = true
		}
		if name == "" || name == "." || name == ".." || name == "?" {
			continue
		}
		// listing a plain file prints the file itself
		if name == dir || (dir != "/" && name == path.Base(dir)) {
			continue
		}
		files = append(files, types.FileEntry{
			Name:    name,
			Path:    path.Join(dir, name),
			Size:    size,
			Mode:    mode,
			ModTime: strings.Join(strings.Fields(line[loc[0]:loc[1]]), " "),
			IsDir:   isDir,
		})
	}
	return files
}
