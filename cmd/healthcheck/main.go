// Package main is a minimal HTTP health check binary for use in distroless
// containers. It exits 0 when the /health endpoint returns HTTP 200, and 1
// otherwise. Compile with CGO_ENABLED=0 for a fully static binary.
//
// The probe targets http://localhost:$OPSDEMO_PORT/health (port 8080 when
// unset). OPSDEMO_HEALTHCHECK_URL replaces the whole URL.
package main

import (
	"net/http"
	"os"
	"time"
)

func main() {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(healthURL(os.Getenv))
	if err != nil {
		os.Exit(1)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

func healthURL(getenv func(string) string) string {
	if u := getenv("OPSDEMO_HEALTHCHECK_URL"); u != "" {
		return u
	}
	port := getenv("OPSDEMO_PORT")
	if port == "" {
		port = "8080"
	}
	return "http://localhost:" + port + "/health"
}
