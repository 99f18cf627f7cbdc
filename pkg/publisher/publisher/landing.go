package publisher

import (
	"encoding/json"
	"os"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

// LoadLandingSections reads the landing page sections file. An empty path
// yields no sections.
func LoadLandingSections(path string) ([]string, error) {
	if path == "" {
		return []string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.WrapStorage(err, "read "+path)
	}
	var doc struct {
		Sections []string `json:"sections"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.WrapMetadata(err, "decode "+path)
	}
	if doc.Sections == nil {
		doc.Sections = []string{}
	}
	return doc.Sections, nil
}
