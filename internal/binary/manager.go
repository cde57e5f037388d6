package binary

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sawmill-dev/sawmill/internal/platform"
	"github.com/sawmill-dev/sawmill/internal/transaction"
)

// Manager orchestrates chainsaw download, verification, and installation.
type Manager struct {
	binDir     string
	linkDir    string
	cacheDir   string
	stateDir   string
	detector   platform.Detector
	downloader *Downloader
	verifier   *Verifier
	extractor  *Extractor
}

// Config holds configuration for the binary manager.
type Config struct {
	// BinDir receives the versioned chainsaw executable and the install
	// manifest (default: <StateDir>/bin).
	BinDir string
	// LinkDir receives the stable `chainsaw` symlink alias. This is the
	// well-known path the rest of the image resolves the tool through.
	LinkDir string
	// StateDir is the sawmill state root (cache, lock).
	StateDir string
	// Detector resolves the platform when no asset name is forced.
	Detector platform.Detector
}

// NewManager creates a new binary manager.
func NewManager(config Config) (*Manager, error) {
	if config.StateDir == "" {
		return nil, fmt.Errorf("StateDir is required")
	}
	if config.LinkDir == "" {
		return nil, fmt.Errorf("LinkDir is required")
	}

	binDir := config.BinDir
	if binDir == "" {
		binDir = filepath.Join(config.StateDir, "bin")
	}

	detector := config.Detector
	if detector == nil {
		detector = platform.NewDetector()
	}

	cacheDir := filepath.Join(config.StateDir, "cache", "downloads")

	return &Manager{
		binDir:     binDir,
		linkDir:    config.LinkDir,
		cacheDir:   cacheDir,
		stateDir:   config.StateDir,
		detector:   detector,
		downloader: NewDownloader(cacheDir),
		verifier:   NewVerifier(),
		extractor:  NewExtractor(),
	}, nil
}

// LinkPath returns the stable alias path the manager maintains.
func (m *Manager) LinkPath() string {
	return filepath.Join(m.linkDir, ToolName)
}

// Manifest reads the install manifest written by the last install.
func (m *Manager) Manifest() (*Manifest, error) {
	return ReadManifest(m.binDir)
}

// IsInstalled reports whether the alias resolves to an executable file.
func (m *Manager) IsInstalled() (bool, error) {
	info, err := os.Stat(m.LinkPath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat alias: %w", err)
	}

	if !info.Mode().IsRegular() {
		return false, nil
	}
	if info.Mode().Perm()&0111 == 0 {
		return false, nil
	}

	return true, nil
}

// Install provisions chainsaw: download, optional verification, extract,
// locate, install under a versioned path, alias, manifest, and a
// diagnostic version probe. Ignored holds extra executable candidates
// when the archive contained more than one file named chainsaw; the
// caller decides whether to warn.
func (m *Manager) Install(ctx context.Context, opts InstallOptions) (result *InstallResult, ignored []string, err error) {
	startTime := time.Now()

	// One provisioning run at a time per state dir
	lock, err := transaction.AcquireLock(filepath.Join(m.stateDir, "locks"))
	if err != nil {
		return nil, nil, fmt.Errorf("acquire provision lock: %w", err)
	}
	defer lock.Release()

	version := opts.Version
	if version == "" {
		version = DefaultVersion
	}

	if opts.Signature != "" && opts.Keyring == "" {
		return nil, nil, fmt.Errorf("signature verification requires --keyring")
	}

	info, err := m.resolveDownloadInfo(ctx, version, opts)
	if err != nil {
		return nil, nil, err
	}

	exeName := ToolName
	if strings.HasSuffix(info.Asset, ".zip") && strings.Contains(info.Asset, "windows") {
		exeName = ToolName + ".exe"
	}

	binaryPath := filepath.Join(m.binDir, fmt.Sprintf("%s-v%s", ToolName, version))

	if !opts.Force {
		if cur, err := ReadManifest(m.binDir); err == nil && cur.Version == version {
			if installed, _ := m.IsInstalled(); installed {
				return &InstallResult{
					Version:      version,
					Asset:        cur.Asset,
					BinaryPath:   cur.BinaryPath,
					LinkPath:     m.LinkPath(),
					SHA256:       cur.SHA256,
					AlreadyThere: true,
					Duration:     time.Since(startTime),
				}, nil, nil
			}
		}
	}

	archivePath, err := m.downloader.DownloadArchive(ctx, info)
	if err != nil {
		return nil, nil, fmt.Errorf("download archive: %w", err)
	}

	verified, err := m.verify(ctx, archivePath, info, opts)
	if err != nil {
		return nil, nil, err
	}

	digest, err := CalculateSHA256(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("digest archive: %w", err)
	}

	scratchDir, err := os.MkdirTemp("", "sawmill-extract-")
	if err != nil {
		return nil, nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	if err := m.extractor.Extract(archivePath, scratchDir); err != nil {
		return nil, nil, fmt.Errorf("extract archive: %w", err)
	}

	candidates, err := LocateExecutable(scratchDir, exeName)
	if err != nil {
		return nil, nil, err
	}
	if len(candidates) > 1 {
		ignored = candidates[1:]
	}

	if err := os.MkdirAll(m.binDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create bin dir: %w", err)
	}

	if err := installFile(candidates[0], binaryPath); err != nil {
		return nil, nil, fmt.Errorf("install binary: %w", err)
	}

	if err := SetExecutable(binaryPath); err != nil {
		return nil, nil, err
	}

	if err := m.link(binaryPath); err != nil {
		return nil, nil, err
	}

	manifest := &Manifest{
		Tool:        ToolName,
		Version:     version,
		Asset:       info.Asset,
		DownloadURL: info.URL,
		SHA256:      digest,
		Verified:    verified.String(),
		BinaryPath:  binaryPath,
		LinkPath:    m.LinkPath(),
		InstalledAt: time.Now().UTC(),
	}
	if err := WriteManifest(m.binDir, manifest); err != nil {
		return nil, nil, err
	}

	result = &InstallResult{
		Version:    version,
		Asset:      info.Asset,
		URL:        info.URL,
		BinaryPath: binaryPath,
		LinkPath:   m.LinkPath(),
		SHA256:     digest,
		Verified:   verified,
		Duration:   time.Since(startTime),
	}

	if !opts.SkipProbe {
		// Diagnostic only; a broken probe never fails the install
		result.ProbeOutput, _ = m.Probe(ctx)
	}

	return result, ignored, nil
}

// Probe runs the installed alias with --version and returns the first
// output line. Failures are returned for logging, never treated as fatal
// by Install.
func (m *Manager) Probe(ctx context.Context) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, m.LinkPath(), "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("probe %s --version: %w", ToolName, err)
	}

	line := string(out)
	if i := bytes.IndexByte(out, '\n'); i >= 0 {
		line = string(out[:i])
	}
	return strings.TrimSpace(line), nil
}

// resolveDownloadInfo fills in the release coordinates, deriving the asset
// name from the detected platform unless one was forced.
func (m *Manager) resolveDownloadInfo(ctx context.Context, version string, opts InstallOptions) (*DownloadInfo, error) {
	asset := opts.Asset
	if asset == "" {
		platInfo, err := m.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("detect platform: %w", err)
		}
		asset, err = platInfo.AssetName()
		if err != nil {
			return nil, err
		}
	}

	base := opts.ReleaseBase
	if base == "" {
		base = DefaultReleaseBase
	}

	info := &DownloadInfo{
		Version: version,
		Asset:   asset,
		URL:     fmt.Sprintf("%s/v%s/%s", base, version, asset),
	}

	if isURL(opts.Checksums) {
		info.ChecksumURL = opts.Checksums
	}
	if isURL(opts.Signature) {
		info.SignatureURL = opts.Signature
	}

	return info, nil
}

// verify runs whichever verification the options enable. Signature wins
// over checksum when both pass; no options means no verification.
func (m *Manager) verify(ctx context.Context, archivePath string, info *DownloadInfo, opts InstallOptions) (VerificationMethod, error) {
	method := VerificationNone

	if opts.Checksums != "" {
		checksumPath := opts.Checksums
		if info.ChecksumURL != "" {
			var err error
			checksumPath, err = m.downloader.DownloadAux(ctx, info, info.ChecksumURL)
			if err != nil {
				return VerificationNone, fmt.Errorf("download checksums: %w", err)
			}
		}
		if err := m.verifier.VerifySHA256(archivePath, checksumPath); err != nil {
			return VerificationNone, fmt.Errorf("checksum verification: %w", err)
		}
		method = VerificationSHA256
	}

	if opts.Signature != "" {
		if opts.Keyring == "" {
			return VerificationNone, fmt.Errorf("signature verification requires --keyring")
		}
		signaturePath := opts.Signature
		if info.SignatureURL != "" {
			var err error
			signaturePath, err = m.downloader.DownloadAux(ctx, info, info.SignatureURL)
			if err != nil {
				return VerificationNone, fmt.Errorf("download signature: %w", err)
			}
		}
		if err := m.verifier.VerifySignature(archivePath, signaturePath, opts.Keyring); err != nil {
			return VerificationNone, fmt.Errorf("signature verification: %w", err)
		}
		method = VerificationPGP
	}

	return method, nil
}

// link points the stable alias at binaryPath, replacing any previous
// alias atomically via a rename.
func (m *Manager) link(binaryPath string) error {
	if err := os.MkdirAll(m.linkDir, 0755); err != nil {
		return fmt.Errorf("create link dir: %w", err)
	}

	linkPath := m.LinkPath()
	tmpLink := linkPath + ".tmp"
	os.Remove(tmpLink)

	if err := os.Symlink(binaryPath, tmpLink); err != nil {
		return fmt.Errorf("create symlink: %w", err)
	}
	if err := os.Rename(tmpLink, linkPath); err != nil {
		os.Remove(tmpLink)
		return fmt.Errorf("replace symlink: %w", err)
	}

	return nil
}

// installFile copies src to dst through a temp file and rename.
func installFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmpPath := dst + ".tmp"
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("create dest: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("copy binary: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close dest: %w", err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}

	return nil
}

// isURL reports whether s looks like a fetchable URL rather than a local
// file path.
func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
