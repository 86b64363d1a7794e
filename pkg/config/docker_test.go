package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveHostForDocker_RemoteHostsUnchanged(t *testing.T) {
	// Non-local hosts pass through regardless of where we run.
	for _, host := range []string{
		"db.example.com",
		"192.168.1.100",
		"host.docker.internal",
	} {
		assert.Equal(t, host, ResolveHostForDocker(host))
	}
}

func TestResolveHostForDocker_LocalhostVariants(t *testing.T) {
	for _, host := range []string{"localhost", "127.0.0.1"} {
		resolved := ResolveHostForDocker(host)
		if IsRunningInDocker() {
			assert.Equal(t, "host.docker.internal", resolved)
		} else {
			assert.Equal(t, host, resolved)
		}
	}
}
