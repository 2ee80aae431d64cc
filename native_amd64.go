package detour

func nativeArch() Arch {
	return AMD64Arch{Scratch: R11}
}
