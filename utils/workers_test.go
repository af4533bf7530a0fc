package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultWorkers(t *testing.T) {
	if got := DefaultWorkers(); got != max(runtime.NumCPU(), 1) {
		t.Errorf("DefaultWorkers() = %d, want %d", got, runtime.NumCPU())
	}
	if got := DefaultWorkers("//server/share/music"); got > networkWorkers || got < 1 {
		t.Errorf("DefaultWorkers(network) = %d, want at most %d", got, networkWorkers)
	}
}

func TestIsNetworkDriveUNC(t *testing.T) {
	for _, p := range []string{"//server/share", `\\server\share`} {
		if !IsNetworkDrive(p) {
			t.Errorf("IsNetworkDrive(%q) = false", p)
		}
	}
}

func TestMountType(t *testing.T) {
	table := filepath.Join(t.TempDir(), "mounts")
	content := `/dev/sda1 / ext4 rw 0 0
server:/export /srv/music nfs4 rw 0 0
//nas/share /srv/music/local\040copy ext4 rw 0 0
tmpfs /tmp tmpfs rw 0 0
`
	if err := os.WriteFile(table, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want string
	}{
		{"/home/user/music", "ext4"},
		{"/srv/music/album/track.flac", "nfs4"},
		{"/srv/music/local copy/track.flac", "ext4"},
		{"/srv/musicians", "ext4"},
		{"/tmp/x", "tmpfs"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := mountType(tt.path, table)
			if !ok || got != tt.want {
				t.Errorf("mountType(%q) = %q, %v; want %q", tt.path, got, ok, tt.want)
			}
		})
	}

	if _, ok := mountType("/x", filepath.Join(t.TempDir(), "missing")); ok {
		t.Error("mountType succeeded without a mount table")
	}
}
