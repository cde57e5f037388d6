// Package platform detects the host operating system, architecture, and
// Linux distribution family, and maps the result onto Chainsaw release
// asset names.
//
// Distribution detection uses gopsutil and degrades gracefully: when the
// distro cannot be identified, OS/arch detection still succeeds and the
// asset mapping falls back to the glibc flavor.
package platform

import "context"

// Linux distribution family constants.
// These represent canonical family names for grouping related distributions.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info contains platform detection information.
type Info struct {
	OS       string // "linux", "darwin", "windows"
	Arch     string // "amd64", "arm64" (normalized)
	ArchRaw  string // original GOARCH value
	Platform string // distro ID (Linux only, e.g. "ubuntu", "alpine")
	Family   string // canonical family (e.g. "debian", "alpine")
	Version  string // distro version (Linux only, e.g. "22.04")
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMusl returns true if the platform links against musl libc.
// Alpine is the only musl family we recognize; everything else is
// assumed glibc.
func (i *Info) IsMusl() bool {
	return i.OS == "linux" && i.Family == FamilyAlpine
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// Static returns a Detector that always reports the given Info.
// Used by tests and when the caller already knows the target platform.
func Static(info *Info) Detector {
	return staticDetector{info: info}
}

type staticDetector struct {
	info *Info
}

func (d staticDetector) Detect(ctx context.Context) (*Info, error) {
	return d.info, nil
}
