//go:build !amd64 && !386

package detour

func nativeArch() Arch {
	return nil
}
