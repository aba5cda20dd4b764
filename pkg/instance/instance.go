// Package instance names the running replica for logs and lock ownership.
package instance

import "os"

const fallbackID = "local"

// ID prefers an explicit BOOKSTORE_INSTANCE_ID, then the platform dyno name,
// then the hostname.
func ID() string {
	for _, key := range []string{"BOOKSTORE_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
