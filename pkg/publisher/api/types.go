package api

import (
	"time"

	"github.com/garunski/marketplace-publisher/pkg/publisher/index"
)

type HealthStatus struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
}

type ComponentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// IndexResponse describes the index currently published in the bucket.
type IndexResponse struct {
	Bucket      string              `json:"bucket"`
	Path        string              `json:"path"`
	Generation  int64               `json:"generation"`
	Fingerprint string              `json:"fingerprint"`
	Manifest    index.Manifest      `json:"manifest"`
	Packs       []string            `json:"packs"`
	Versions    map[string][]string `json:"versions"`
}
