package index

import (
	"encoding/json"
	"time"
)

// ModifiedLayout is the timestamp format of Manifest.Modified.
const ModifiedLayout = "2006-01-02T15:04:05Z"

// PrivatePackRecord is the manifest data of one priced pack.
type PrivatePackRecord struct {
	ID                string `json:"id"`
	Price             int    `json:"price"`
	VendorID          string `json:"vendorId"`
	PartnerID         string `json:"partnerId"`
	PartnerName       string `json:"partnerName"`
	DisableMonthly    bool   `json:"disableMonthly"`
	ContentCommitHash string `json:"contentCommitHash"`
}

type LandingPage struct {
	Sections []string `json:"sections"`
}

// Manifest is the index.json document at the index root.
type Manifest struct {
	Revision    string              `json:"revision"`
	Modified    string              `json:"modified"`
	Packs       []PrivatePackRecord `json:"packs"`
	Commit      string              `json:"commit"`
	LandingPage LandingPage         `json:"landingPage"`
}

// ModifiedAt formats t for Manifest.Modified.
func ModifiedAt(t time.Time) string {
	return t.UTC().Format(ModifiedLayout)
}

// PackRecord returns the private record with the given id.
func (m Manifest) PackRecord(id string) (PrivatePackRecord, bool) {
	for _, r := range m.Packs {
		if r.ID == id {
			return r, true
		}
	}
	return PrivatePackRecord{}, false
}

// IsEmpty reports whether the manifest carries no data at all.
func (m Manifest) IsEmpty() bool {
	return m.Revision == "" && m.Commit == "" && len(m.Packs) == 0 && m.Modified == ""
}

func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func (m Manifest) Marshal() ([]byte, error) {
	if m.Packs == nil {
		m.Packs = []PrivatePackRecord{}
	}
	if m.LandingPage.Sections == nil {
		m.LandingPage.Sections = []string{}
	}
	return json.MarshalIndent(m, "", "    ")
}
