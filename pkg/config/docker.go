package config

import (
	"os"
	"sync"
)

var (
	dockerOnce  sync.Once
	inContainer bool
)

// IsRunningInDocker reports whether the process runs inside a Docker container.
func IsRunningInDocker() bool {
	dockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		inContainer = err == nil
	})
	return inContainer
}

// ResolveHostForDocker maps loopback hosts to host.docker.internal when running in a container,
// so a containerized regwatch can reach Postgres and Redis on the developer machine.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

func resolveHost(host string, containerized bool) string {
	if !containerized {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1":
		return "host.docker.internal"
	}
	return host
}

// resolveServiceHosts rewrites the database and Redis hosts for container networking.
func (c *Config) resolveServiceHosts() {
	c.Database.Host = ResolveHostForDocker(c.Database.Host)
	if c.Redis.Host != "" {
		c.Redis.Host = ResolveHostForDocker(c.Redis.Host)
	}
}
