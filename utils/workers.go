// Package utils holds host probing helpers.
package utils

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// networkWorkers caps the default pool when input lives on a network mount
const networkWorkers = 2

// networkFilesystems are mount types whose reads go over the network
var networkFilesystems = map[string]bool{
	"nfs": true, "nfs4": true, "cifs": true, "smb3": true, "smbfs": true,
	"afpfs": true, "9p": true, "davfs": true, "fuse.sshfs": true, "fuse.rclone": true,
}

// mountPrefixes are conventional mount locations used when the mount
// table is unavailable
var mountPrefixes = []string{"/mnt/", "/media/", "/Volumes/"}

// DefaultWorkers picks a worker count: one per CPU, or networkWorkers when
// any of paths is on a network drive
func DefaultWorkers(paths ...string) int {
	n := runtime.NumCPU()
	for _, p := range paths {
		if IsNetworkDrive(p) {
			return min(n, networkWorkers)
		}
	}
	return max(n, 1)
}

// IsNetworkDrive reports whether path appears to be on a network mount
func IsNetworkDrive(path string) bool {
	// UNC paths, before Abs rewrites them
	if strings.HasPrefix(path, "//") || strings.HasPrefix(path, `\\`) {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if fstype, ok := mountType(abs, "/proc/mounts"); ok {
		return networkFilesystems[fstype]
	}
	for _, prefix := range mountPrefixes {
		if strings.HasPrefix(abs, prefix) {
			return true
		}
	}
	return false
}

// mountType returns the filesystem type of the longest mount point in
// table containing path
func mountType(path, table string) (string, bool) {
	f, err := os.Open(table)
	if err != nil {
		return "", false
	}
	defer f.Close()

	best, fstype := "", ""
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		mount := unescapeMount(fields[1])
		if !within(path, mount) || len(mount) < len(best) {
			continue
		}
		best, fstype = mount, fields[2]
	}
	return fstype, best != ""
}

func within(path, mount string) bool {
	if mount == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == mount || strings.HasPrefix(path, mount+"/")
}

// unescapeMount undoes the octal escapes the kernel uses for spaces and
// tabs in mount points
func unescapeMount(s string) string {
	r := strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)
	return r.Replace(s)
}
