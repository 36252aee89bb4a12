package ch

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// BuildClientInfo describes this process for system.query_log. The role
// names the binary: "api", "worker" or "janitor".
func BuildClientInfo(role string) clickhouse.ClientInfo {
	host, _ := os.Hostname()

	type kv = struct{ Name, Version string }

	return clickhouse.ClientInfo{Products: []kv{
		{Name: "taplist", Version: moduleVersion()},
		{Name: "role", Version: role},
		{Name: "go", Version: runtime.Version()},
		{Name: "commit", Version: shortCommit()},
		{Name: "host", Version: host},
	}}
}

func moduleVersion() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		return bi.Main.Version
	}
	return "devel"
}

// shortCommit reads the vcs stamp; a trailing plus marks a dirty tree
func shortCommit() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	sha, dirty := "", false
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) >= 7 {
				sha = s.Value[:7]
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if sha == "" {
		return "unknown"
	}
	if dirty {
		return sha + "+"
	}
	return sha
}
