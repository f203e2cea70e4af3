package instance

import (
	"os"

	"github.com/starlightdeck/careon/pkg/env"
)

const fallbackID = "careon-0"

// GetID identifies this process in startup logs. CAREON_INSTANCE_ID
// wins, then the hostname.
func GetID() string {
	if id := env.Get("CAREON_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
