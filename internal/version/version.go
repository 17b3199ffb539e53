// Package version carries build metadata for the opsdemo binaries.
// The variables are stamped with -ldflags by the container build.
package version

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// Version is the release tag or short commit hash.
	// Set via: -ldflags "-X opsdemo/internal/version.Version=..."
	Version = "unknown"

	// BuildDate is the ISO 8601 UTC build timestamp.
	// Set via: -ldflags "-X opsdemo/internal/version.BuildDate=..."
	BuildDate = "unknown"

	// GitCommit is the full commit SHA.
	// Set via: -ldflags "-X opsdemo/internal/version.GitCommit=..."
	GitCommit = "unknown"
)

// Info holds build metadata plus per-process identity.
type Info struct {
	Version    string    `json:"version"`
	GitCommit  string    `json:"git_commit"`
	BuildDate  string    `json:"build_date"`
	InstanceID string    `json:"instance_id"`
	Hostname   string    `json:"hostname"`
	StartedAt  time.Time `json:"started_at"`
}

var (
	once sync.Once
	info Info
)

// GetInfo returns the process build info. Instance ID, hostname and start
// time are fixed on first call.
func GetInfo() Info {
	once.Do(func() {
		info = Info{
			Version:    Version,
			GitCommit:  GitCommit,
			BuildDate:  BuildDate,
			InstanceID: uuid.New().String(),
			Hostname:   getHostname(),
			StartedAt:  time.Now(),
		}
	})
	return info
}

// Uptime reports how long the process has been running, truncated to seconds.
func (i Info) Uptime() time.Duration {
	if i.StartedAt.IsZero() {
		return 0
	}
	return time.Since(i.StartedAt).Truncate(time.Second)
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// String formats version info for CLI display.
func (i Info) String() string {
	return fmt.Sprintf("opsdemo %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildDate)
}
