package binary

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sawmill-dev/sawmill/internal/platform"
)

var testPlatform = &platform.Info{OS: "linux", Arch: "amd64", Family: platform.FamilyDebian}

// serveRelease returns an httptest server that serves the given assets
// under the GitHub release URL layout (/v<version>/<asset>).
func serveRelease(t *testing.T, version string, assets map[string][]byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	for name, content := range assets {
		body := content
		mux.HandleFunc(fmt.Sprintf("/v%s/%s", version, name), func(w http.ResponseWriter, r *http.Request) {
			w.Write(body)
		})
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	tmpDir := t.TempDir()
	manager, err := NewManager(Config{
		StateDir: filepath.Join(tmpDir, "state"),
		LinkDir:  filepath.Join(tmpDir, "linkbin"),
		Detector: platform.Static(testPlatform),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return manager
}

func readTestFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func TestManagerInstall(t *testing.T) {
	const version = "2.12.2"
	asset, err := testPlatform.AssetName()
	if err != nil {
		t.Fatal(err)
	}

	archive := readTestFile(t, createTestTarGz(t, map[string]string{
		"chainsaw": "#!/bin/sh\necho chainsaw v2.12.2\n",
		"README":   "docs",
	}))
	server := serveRelease(t, version, map[string][]byte{asset: archive})

	manager := newTestManager(t)

	result, ignored, err := manager.Install(context.Background(), InstallOptions{
		Version:     version,
		ReleaseBase: server.URL,
		SkipProbe:   true,
	})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	if len(ignored) != 0 {
		t.Errorf("ignored candidates = %v, want none", ignored)
	}
	if result.AlreadyThere {
		t.Error("fresh install reported AlreadyThere")
	}
	if result.Verified != VerificationNone {
		t.Errorf("Verified = %s, want None", result.Verified)
	}

	// Installed file must be executable
	info, err := os.Stat(result.BinaryPath)
	if err != nil {
		t.Fatalf("stat installed binary: %v", err)
	}
	if info.Mode().Perm()&0111 == 0 {
		t.Error("installed binary is not executable")
	}

	// Alias must be a symlink resolving to the installed file
	target, err := os.Readlink(result.LinkPath)
	if err != nil {
		t.Fatalf("readlink alias: %v", err)
	}
	if target != result.BinaryPath {
		t.Errorf("alias points at %q, want %q", target, result.BinaryPath)
	}

	installed, err := manager.IsInstalled()
	if err != nil {
		t.Fatalf("IsInstalled: %v", err)
	}
	if !installed {
		t.Error("IsInstalled = false after install")
	}

	// Manifest records the install
	manifest, err := ReadManifest(manager.binDir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if manifest.Version != version || manifest.Asset != asset {
		t.Errorf("manifest = %+v", manifest)
	}
	if manifest.SHA256 != result.SHA256 {
		t.Errorf("manifest digest %s != result digest %s", manifest.SHA256, result.SHA256)
	}
}

func TestManagerInstallIdempotent(t *testing.T) {
	const version = "2.12.2"
	asset, _ := testPlatform.AssetName()

	archive := readTestFile(t, createTestTarGz(t, map[string]string{"chainsaw": "bin"}))
	server := serveRelease(t, version, map[string][]byte{asset: archive})

	manager := newTestManager(t)
	opts := InstallOptions{Version: version, ReleaseBase: server.URL, SkipProbe: true}

	if _, _, err := manager.Install(context.Background(), opts); err != nil {
		t.Fatalf("first install: %v", err)
	}

	second, _, err := manager.Install(context.Background(), opts)
	if err != nil {
		t.Fatalf("second install: %v", err)
	}
	if !second.AlreadyThere {
		t.Error("second install should report AlreadyThere")
	}

	// Force reinstalls over the existing version
	forced, _, err := manager.Install(context.Background(), InstallOptions{
		Version: version, ReleaseBase: server.URL, SkipProbe: true, Force: true,
	})
	if err != nil {
		t.Fatalf("forced install: %v", err)
	}
	if forced.AlreadyThere {
		t.Error("forced install should not report AlreadyThere")
	}
}

func TestManagerInstallMissingAsset(t *testing.T) {
	server := serveRelease(t, "2.12.2", nil) // no assets published

	manager := newTestManager(t)
	_, _, err := manager.Install(context.Background(), InstallOptions{
		Version:     "2.12.2",
		ReleaseBase: server.URL,
		SkipProbe:   true,
	})
	if err == nil {
		t.Fatal("expected fetch failure for missing asset")
	}
}

func TestManagerInstallNoExecutableInArchive(t *testing.T) {
	const version = "2.12.2"
	asset, _ := testPlatform.AssetName()

	// Archive without any file named chainsaw
	archive := readTestFile(t, createTestTarGz(t, map[string]string{"README": "no binary here"}))
	server := serveRelease(t, version, map[string][]byte{asset: archive})

	manager := newTestManager(t)
	_, _, err := manager.Install(context.Background(), InstallOptions{
		Version:     version,
		ReleaseBase: server.URL,
		SkipProbe:   true,
	})
	if err == nil {
		t.Fatal("expected error when archive contains no chainsaw executable")
	}
}

func TestManagerInstallMultipleCandidates(t *testing.T) {
	const version = "2.12.2"
	asset, _ := testPlatform.AssetName()

	archive := readTestFile(t, createTestTarGz(t, map[string]string{
		"aaa/chainsaw": "first in lexical order",
		"zzz/chainsaw": "second in lexical order",
	}))
	server := serveRelease(t, version, map[string][]byte{asset: archive})

	manager := newTestManager(t)
	result, ignored, err := manager.Install(context.Background(), InstallOptions{
		Version:     version,
		ReleaseBase: server.URL,
		SkipProbe:   true,
	})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	if len(ignored) != 1 {
		t.Fatalf("ignored = %v, want one entry", ignored)
	}

	data := readTestFile(t, result.BinaryPath)
	if string(data) != "first in lexical order" {
		t.Errorf("installed wrong candidate: %q", data)
	}
}

func TestManagerInstallChecksumVerification(t *testing.T) {
	const version = "2.12.2"
	asset, _ := testPlatform.AssetName()

	archive := readTestFile(t, createTestTarGz(t, map[string]string{"chainsaw": "bin"}))
	digest := sha256.Sum256(archive)

	tests := []struct {
		name     string
		checksum string
		wantErr  bool
	}{
		{
			name:     "valid_checksum",
			checksum: fmt.Sprintf("%s  %s\n", hex.EncodeToString(digest[:]), asset),
		},
		{
			name:     "tampered_checksum",
			checksum: fmt.Sprintf("%064x  %s\n", 0, asset),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serveRelease(t, version, map[string][]byte{
				asset:           archive,
				"checksums.txt": []byte(tt.checksum),
			})

			manager := newTestManager(t)
			result, _, err := manager.Install(context.Background(), InstallOptions{
				Version:     version,
				ReleaseBase: server.URL,
				Checksums:   server.URL + fmt.Sprintf("/v%s/checksums.txt", version),
				SkipProbe:   true,
			})

			if tt.wantErr {
				if err == nil {
					t.Error("expected checksum verification failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("Install: %v", err)
			}
			if result.Verified != VerificationSHA256 {
				t.Errorf("Verified = %s, want SHA256", result.Verified)
			}
		})
	}
}

func TestManagerInstallSignatureRequiresKeyring(t *testing.T) {
	manager := newTestManager(t)
	_, _, err := manager.Install(context.Background(), InstallOptions{
		Version:   "2.12.2",
		Signature: "/tmp/some.sig",
		SkipProbe: true,
	})
	if err == nil {
		t.Fatal("expected error: signature without keyring")
	}
}

func TestManagerProbeRunsInstalledAlias(t *testing.T) {
	const version = "2.12.2"
	asset, _ := testPlatform.AssetName()

	// A real runnable script stands in for the chainsaw binary
	archive := readTestFile(t, createTestTarGz(t, map[string]string{
		"chainsaw": "#!/bin/sh\necho 'chainsaw 2.12.2'\n",
	}))
	server := serveRelease(t, version, map[string][]byte{asset: archive})

	manager := newTestManager(t)
	result, _, err := manager.Install(context.Background(), InstallOptions{
		Version:     version,
		ReleaseBase: server.URL,
	})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	if result.ProbeOutput != "chainsaw 2.12.2" {
		t.Errorf("ProbeOutput = %q, want %q", result.ProbeOutput, "chainsaw 2.12.2")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{LinkDir: "/tmp/x"}); err == nil {
		t.Error("expected error for missing StateDir")
	}
	if _, err := NewManager(Config{StateDir: "/tmp/x"}); err == nil {
		t.Error("expected error for missing LinkDir")
	}
}
