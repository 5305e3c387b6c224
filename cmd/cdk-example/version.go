package main

import "runtime/debug"

// version is set with -ldflags "-X main.version=v1.2.3".
var version = ""

// getVersion prefers the linker-provided version, then the module version
// recorded by "go install pkg@version", then the VCS revision, then "dev".
func getVersion() string {
	if version != "" {
		return version
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return "dev-" + s.Value[:12]
		}
	}
	return "dev"
}
