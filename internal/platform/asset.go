package platform

import "fmt"

// Chainsaw release target triples. Release archives are named
// chainsaw_<triple>.tar.gz, except Windows which ships a zip.
const (
	tripleLinuxGNUAmd64  = "x86_64-unknown-linux-gnu"
	tripleLinuxGNUArm64  = "aarch64-unknown-linux-gnu"
	tripleLinuxMuslAmd64 = "x86_64-unknown-linux-musl"
	tripleLinuxMuslArm64 = "aarch64-unknown-linux-musl"
	tripleDarwinAmd64    = "x86_64-apple-darwin"
	tripleDarwinArm64    = "aarch64-apple-darwin"
	tripleWindowsAmd64   = "x86_64-pc-windows-msvc"
)

// AssetName returns the Chainsaw release asset filename for this platform.
// Alpine hosts get the musl build; every other Linux family gets glibc.
func (i *Info) AssetName() (string, error) {
	switch i.OS {
	case "linux":
		triple, err := linuxTriple(i.Arch, i.IsMusl())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("chainsaw_%s.tar.gz", triple), nil
	case "darwin":
		switch i.Arch {
		case "amd64":
			return fmt.Sprintf("chainsaw_%s.tar.gz", tripleDarwinAmd64), nil
		case "arm64":
			return fmt.Sprintf("chainsaw_%s.tar.gz", tripleDarwinArm64), nil
		}
	case "windows":
		if i.Arch == "amd64" {
			return fmt.Sprintf("chainsaw_%s.zip", tripleWindowsAmd64), nil
		}
	}
	return "", fmt.Errorf("no chainsaw release asset for %s/%s", i.OS, i.Arch)
}

// ExecutableName returns the name of the chainsaw executable inside a
// release archive for this platform.
func (i *Info) ExecutableName() string {
	if i.OS == "windows" {
		return "chainsaw.exe"
	}
	return "chainsaw"
}

func linuxTriple(arch string, musl bool) (string, error) {
	switch arch {
	case "amd64":
		if musl {
			return tripleLinuxMuslAmd64, nil
		}
		return tripleLinuxGNUAmd64, nil
	case "arm64":
		if musl {
			return tripleLinuxMuslArm64, nil
		}
		return tripleLinuxGNUArm64, nil
	default:
		return "", fmt.Errorf("no chainsaw linux build for architecture %s", arch)
	}
}
