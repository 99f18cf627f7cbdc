package pack

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

// ContentItem is the summary of one content entity shipped by a pack.
type ContentItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// contentFolders maps pack sub folders to their content item kind.
var contentFolders = map[string]string{
	"Integrations":     "integration",
	"Scripts":          "automation",
	"Playbooks":        "playbook",
	"Classifiers":      "classifier",
	"IncidentFields":   "incidentfield",
	"IncidentTypes":    "incidenttype",
	"IndicatorFields":  "indicatorfield",
	"IndicatorTypes":   "reputation",
	"Layouts":          "layoutscontainer",
	"Dashboards":       "dashboard",
	"Reports":          "report",
	"Widgets":          "widget",
	"XSIAMDashboards":  "xsiamdashboard",
	"XSIAMReports":     "xsiamreport",
	"ParsingRules":     "parsingrule",
	"ModelingRules":    "modelingrule",
	"CorrelationRules": "correlationrule",
}

type contentDocument struct {
	ID           string `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	Display      string `yaml:"display" json:"display"`
	Description  string `yaml:"description" json:"description"`
	CommonFields struct {
		ID string `yaml:"id" json:"id"`
	} `yaml:"commonfields" json:"commonfields"`
}

func (d contentDocument) item() (ContentItem, bool) {
	id := d.ID
	if id == "" {
		id = d.CommonFields.ID
	}
	name := d.Display
	if name == "" {
		name = d.Name
	}
	if id == "" && name == "" {
		return ContentItem{}, false
	}
	if id == "" {
		id = name
	}
	if name == "" {
		name = id
	}
	return ContentItem{ID: id, Name: name, Description: d.Description}, true
}

// CollectContentItems parses every yml and json entity of the known content
// folders.
func (p *Pack) CollectContentItems() error {
	items := make(map[string][]ContentItem)

	for folder, kind := range contentFolders {
		root := filepath.Join(p.Path, folder)
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isContentFile(d.Name()) {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			doc, err := decodeContent(d.Name(), data)
			if err != nil {
				return apperrors.WrapMetadata(err, "parse "+path)
			}
			if item, ok := doc.item(); ok {
				items[kind] = append(items[kind], item)
			}
			return nil
		})
		if err != nil {
			return apperrors.WrapMetadata(err, "collect "+folder)
		}
	}

	for kind := range items {
		sort.Slice(items[kind], func(i, j int) bool {
			return items[kind][i].ID < items[kind][j].ID
		})
	}
	p.ContentItems = items
	p.logger.V(1).Info("collected content items", "kinds", len(items))
	return nil
}

func decodeContent(name string, data []byte) (contentDocument, error) {
	var doc contentDocument
	if strings.EqualFold(filepath.Ext(name), ".json") {
		err := json.Unmarshal(data, &doc)
		return doc, err
	}
	err := yaml.Unmarshal(data, &doc)
	return doc, err
}

func isContentFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".yml" && ext != ".yaml" && ext != ".json" {
		return false
	}
	return !strings.HasSuffix(name, "_test.yml") && !strings.HasPrefix(name, ".")
}
