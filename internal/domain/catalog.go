package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// HealthInfo is the qualitative health text for a contaminant.
type HealthInfo struct {
	HealthEffects    string `yaml:"health_effects"`
	VulnerableGroups string `yaml:"vulnerable_groups"`
	ExposureDuration string `yaml:"exposure_duration"`
}

var defaultHealthInfo = HealthInfo{
	HealthEffects:    "various health problems depending on the contaminant level and duration of exposure",
	VulnerableGroups: "infants, young children, pregnant women, elderly, and immunocompromised individuals",
	ExposureDuration: "prolonged exposure",
}

var knownHealthInfo = map[string]HealthInfo{
	"1005": { // arsenic
		HealthEffects:    "skin problems, circulatory issues, and increased cancer risk (bladder, lung, skin)",
		VulnerableGroups: "pregnant women, children, and individuals with compromised immune systems",
		ExposureDuration: "chronic exposure over years",
	},
	"2050": { // atrazine
		HealthEffects:    "cardiovascular problems and reproductive issues",
		VulnerableGroups: "pregnant women and developing children",
		ExposureDuration: "long-term exposure",
	},
	"2047": { // aldicarb
		HealthEffects:    "nervous system effects such as sweating, nausea, and muscle weakness",
		VulnerableGroups: "infants, young children, and people with nervous system conditions",
		ExposureDuration: "short-term and long-term exposure",
	},
	"2046": { // carbofuran
		HealthEffects:    "problems with the blood, nervous system, or reproductive system",
		VulnerableGroups: "pregnant women, infants, and young children",
		ExposureDuration: "long-term exposure",
	},
	"1040": { // nitrate
		HealthEffects:    "shortness of breath and blue-baby syndrome in infants",
		VulnerableGroups: "infants younger than six months and pregnant women",
		ExposureDuration: "short-term exposure",
	},
}

// Catalog looks up health information by SDWIS contaminant code.
type Catalog struct {
	entries  map[string]HealthInfo
	fallback HealthInfo
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	entries := make(map[string]HealthInfo, len(knownHealthInfo))
	for code, info := range knownHealthInfo {
		entries[code] = info
	}
	return &Catalog{entries: entries, fallback: defaultHealthInfo}
}

// Lookup returns the entry for code, or the generic default entry.
func (c *Catalog) Lookup(code string) HealthInfo {
	if info, ok := c.entries[code]; ok {
		return info
	}
	return c.fallback
}

// catalogFile is the YAML overlay format:
//
//	default:
//	  health_effects: ...
//	contaminants:
//	  "1040":
//	    health_effects: ...
//	    vulnerable_groups: ...
//	    exposure_duration: ...
type catalogFile struct {
	Default      *HealthInfo           `yaml:"default"`
	Contaminants map[string]HealthInfo `yaml:"contaminants"`
}

// LoadCatalog returns the built-in catalog extended by the YAML file at path.
// An empty path returns the built-in catalog. Fields left empty in the file
// are filled from the default entry.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	if file.Default != nil {
		c.fallback = fillHealthInfo(*file.Default, defaultHealthInfo)
	}
	for code, info := range file.Contaminants {
		c.entries[code] = fillHealthInfo(info, c.fallback)
	}
	return c, nil
}

func fillHealthInfo(info, from HealthInfo) HealthInfo {
	if info.HealthEffects == "" {
		info.HealthEffects = from.HealthEffects
	}
	if info.VulnerableGroups == "" {
		info.VulnerableGroups = from.VulnerableGroups
	}
	if info.ExposureDuration == "" {
		info.ExposureDuration = from.ExposureDuration
	}
	return info
}
