package models

import "time"

type LicenseType string

const (
	LicenseFree         LicenseType = "free"
	LicenseSubscription LicenseType = "subscription"
	LicensePerpetual    LicenseType = "perpetual"
	LicenseOpenSource   LicenseType = "open-source"
)

type SoftwareProduct struct {
	ID               string      `json:"id,omitempty"`
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	Version          string      `json:"version"`
	Platforms        []string    `json:"platform,omitempty"`
	LicenseType      LicenseType `json:"licenseType"`
	Price            float64     `json:"price"`
	DownloadURL      string      `json:"downloadUrl,omitempty"`
	DocumentationURL string      `json:"documentationUrl,omitempty"`
	Features         []string    `json:"features,omitempty"`
	Featured         bool        `json:"featured"`
	ReleaseDate      *time.Time  `json:"releaseDate,omitempty"`
}

func (s SoftwareProduct) GetID() string { return s.ID }

// SupportsPlatform matches case-sensitively against the declared platforms.
func (s SoftwareProduct) SupportsPlatform(platform string) bool {
	for _, p := range s.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

const SoftwareProductSchema = `{
  "type": "object",
  "required": ["name", "version", "licenseType", "price"],
  "properties": {
    "name":        {"type": "string", "minLength": 1, "maxLength": 200},
    "version":     {"type": "string", "minLength": 1},
    "licenseType": {"type": "string", "enum": ["free", "subscription", "perpetual", "open-source"]},
    "price":       {"type": "number", "minimum": 0},
    "platform":    {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`
