// Package binary provisions the Chainsaw executable from GitHub release
// archives.
//
// The flow mirrors what the container build used to do by hand: resolve a
// release URL from a version and platform asset name, download the archive
// (with retry and a local cache), extract it into a scratch directory,
// locate the chainsaw executable inside the extracted tree, install it
// under a versioned path, and expose it through a stable symlink alias on
// the command search path. Optional SHA256 checksum and detached PGP
// signature verification can be enabled per install; a post-install
// version probe runs for diagnostics only and never fails the install.
package binary
