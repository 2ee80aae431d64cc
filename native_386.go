package detour

func nativeArch() Arch {
	return IA32Arch{}
}
