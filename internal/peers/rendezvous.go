package peers

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// rendezvousDir is the fixed subdirectory, relative to a repository's
// Trash directory, that holds one rendezvous file per listening process
// (spec.md §3 RendezvousFile, §4.4).
const rendezvousDir = ".trailer/trashListeners"

// ServerVersion is stamped into the first line of every rendezvous file
// this build publishes.
const ServerVersion = "trashd-1"

// RendezvousFile is the parsed, five-line body of one rendezvous file.
type RendezvousFile struct {
	Version  string
	Protocol string
	Hostname string
	Port     int
	Base     string
}

func rendezvousPath(trashDir, hostname string, port int) string {
	return filepath.Join(trashDir, rendezvousDir, fmt.Sprintf("%d_%s", port, hostname))
}

// publishRendezvous writes this listener's rendezvous file under
// trashDir, creating the .trailer/trashListeners directory if needed.
// Ownership is the publishing process's; Unpublish removes it again.
func publishRendezvous(trashDir, hostname string, port int, base string) (string, error) {
	dir := filepath.Join(trashDir, rendezvousDir)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return "", err
	}
	path := rendezvousPath(trashDir, hostname, port)
	body := strings.Join([]string{
		ServerVersion,
		"tcp",
		hostname,
		strconv.Itoa(port),
		base,
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// readRendezvous parses one rendezvous file's five-line body.
func readRendezvous(path string) (RendezvousFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return RendezvousFile{}, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return RendezvousFile{}, err
	}
	if len(lines) < 5 {
		return RendezvousFile{}, fmt.Errorf("peers: truncated rendezvous file %s", path)
	}
	port, err := strconv.Atoi(lines[3])
	if err != nil {
		return RendezvousFile{}, fmt.Errorf("peers: bad port in %s: %w", path, err)
	}
	return RendezvousFile{
		Version:  lines[0],
		Protocol: lines[1],
		Hostname: lines[2],
		Port:     port,
		Base:     lines[4],
	}, nil
}

// scanRendezvous enumerates every rendezvous file under trashDir's
// rendezvous directory. Files that fail to parse are skipped, the same
// lossy-listing posture the Physical Repository takes with malformed
// .trashinfo files.
func scanRendezvous(trashDir string) ([]RendezvousFile, error) {
	dir := filepath.Join(trashDir, rendezvousDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []RendezvousFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		rf, err := readRendezvous(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, rf)
	}
	return out, nil
}
