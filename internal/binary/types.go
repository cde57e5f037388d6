package binary

import "time"

const (
	// ToolName is the executable name this package provisions.
	ToolName = "chainsaw"

	// DefaultVersion is the Chainsaw release installed when no version is
	// given. Pinned rather than "latest" so image builds are reproducible.
	DefaultVersion = "2.12.2"

	// DefaultReleaseBase is the release download URL prefix. The final URL
	// is <base>/v<version>/<asset>.
	DefaultReleaseBase = "https://github.com/WithSecureLabs/chainsaw/releases/download"
)

// DownloadInfo contains the coordinates of one release archive.
type DownloadInfo struct {
	Version      string
	Asset        string // release asset filename, e.g. chainsaw_x86_64-unknown-linux-gnu.tar.gz
	URL          string // fully resolved archive URL
	ChecksumURL  string // optional checksum file URL (empty disables SHA256 verification)
	SignatureURL string // optional detached signature URL (empty disables PGP verification)
}

// InstallOptions configures a provisioning run.
type InstallOptions struct {
	// Version of chainsaw to install. Empty means DefaultVersion.
	Version string
	// Asset overrides the platform-derived release asset filename.
	Asset string
	// ReleaseBase overrides DefaultReleaseBase (tests point this at a
	// local HTTP server).
	ReleaseBase string
	// Checksums is a local path or URL of a SHA256 checksum file. Empty
	// skips checksum verification, matching the original build.
	Checksums string
	// Signature is a local path or URL of a detached PGP signature over
	// the archive. Requires Keyring.
	Signature string
	// Keyring is a local path to an armored or binary PGP public keyring.
	Keyring string
	// Force reinstalls even when the requested version is already present.
	Force bool
	// SkipProbe disables the post-install version probe. The probe is
	// diagnostic either way; tests use fake archives that cannot run.
	SkipProbe bool
}

// InstallResult describes a completed provisioning run.
type InstallResult struct {
	Version      string
	Asset        string
	URL          string
	BinaryPath   string // installed versioned executable
	LinkPath     string // stable alias symlink
	SHA256       string // hex digest of the downloaded archive
	Verified     VerificationMethod
	ProbeOutput  string // first line of `chainsaw --version`, empty if the probe failed
	AlreadyThere bool   // true when the install was skipped as current
	Duration     time.Duration
}

// VerificationMethod indicates how an archive was verified.
type VerificationMethod int

const (
	// VerificationNone means the archive was installed without
	// cryptographic verification (the original build's behavior).
	VerificationNone VerificationMethod = iota
	// VerificationSHA256 means a checksum file matched.
	VerificationSHA256
	// VerificationPGP means a detached signature verified against the
	// operator-supplied keyring.
	VerificationPGP
)

// String returns the string representation of the verification method.
func (v VerificationMethod) String() string {
	switch v {
	case VerificationSHA256:
		return "SHA256"
	case VerificationPGP:
		return "PGP"
	case VerificationNone:
		return "None"
	default:
		return "Unknown"
	}
}
