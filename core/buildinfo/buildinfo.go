// Package buildinfo carries release metadata stamped in by the linker:
//
//	go build -ldflags "-X github.com/m3rciful/relaybot/core/buildinfo.Version=v0.3.0 \
//	  -X github.com/m3rciful/relaybot/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/relaybot/core/buildinfo.Date=$(date -u +%FT%TZ)" ./cmd/relaybot
package buildinfo

var (
	Version = "dev"
	Commit  = "local"
	// Date is RFC3339; empty for local builds.
	Date = ""
)
