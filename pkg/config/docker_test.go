package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveHost(t *testing.T) {
	tests := []struct {
		host          string
		containerized bool
		want          string
	}{
		{"localhost", true, "host.docker.internal"},
		{"127.0.0.1", true, "host.docker.internal"},
		{"localhost", false, "localhost"},
		{"db.internal", true, "db.internal"},
		{"192.168.1.100", true, "192.168.1.100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveHost(tt.host, tt.containerized), "host %q containerized=%v", tt.host, tt.containerized)
	}
}

func TestResolveHostForDocker_LeavesRemoteHosts(t *testing.T) {
	assert.Equal(t, "mydb.example.com", ResolveHostForDocker("mydb.example.com"))
}
