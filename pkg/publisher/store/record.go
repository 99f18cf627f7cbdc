package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

// PackOutcome is the final state of one pack in a run.
type PackOutcome struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// RunRecord summarises a finished or in-flight publish run.
type RunRecord struct {
	ID          string        `json:"id"`
	BuildNumber string        `json:"buildNumber"`
	Marketplace string        `json:"marketplace"`
	Bucket      string        `json:"bucket"`
	Commit      string        `json:"commit,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt,omitempty"`
	Generation  int64         `json:"generation"`
	Published   bool          `json:"published"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Fatal       string        `json:"fatal,omitempty"`
	ExitCode    int           `json:"exitCode"`
	Packs       []PackOutcome `json:"packs"`
}

func (r RunRecord) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Count returns how many packs ended with the given kind.
func (r RunRecord) Count(kind string) int {
	n := 0
	for _, p := range r.Packs {
		if p.Kind == kind {
			n++
		}
	}
	return n
}

func (r RunRecord) validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: run record has no id", apperrors.ErrInvalid)
	}
	return nil
}

func (r RunRecord) marshal() ([]byte, error) {
	sorted := make([]PackOutcome, len(r.Packs))
	copy(sorted, r.Packs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	r.Packs = sorted
	return json.Marshal(r)
}

func unmarshalRecord(data []byte) (RunRecord, error) {
	var r RunRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return RunRecord{}, fmt.Errorf("%w: decode run record: %w", apperrors.ErrInvalid, err)
	}
	return r, nil
}
