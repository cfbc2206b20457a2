package instance

import (
	"os"

	"github.com/angelmondragon/guruji-backend/pkg/env"
)

const EnvWorkerID = "GURUJI_WORKER_ID"

// GetID identifies this worker replica in logs: GURUJI_WORKER_ID, then the
// hostname, then a fixed default.
func GetID() string {
	if id := env.Get(EnvWorkerID, ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
