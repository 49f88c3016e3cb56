package librelink

import (
	"fmt"
	"sort"
	"strings"
)

// Region is a LibreLinkUp region code such as "EU" or "US".
type Region string

// regionHosts maps supported region codes to API hosts.
var regionHosts = map[Region]string{
	"AE":  "api-ae.libreview.io",
	"AP":  "api-ap.libreview.io",
	"AU":  "api-au.libreview.io",
	"CA":  "api-ca.libreview.io",
	"DE":  "api-de.libreview.io",
	"EU":  "api-eu.libreview.io",
	"EU2": "api-eu2.libreview.io",
	"FR":  "api-fr.libreview.io",
	"JP":  "api-jp.libreview.io",
	"LA":  "api-la.libreview.io",
	"RU":  "api.libreview.ru",
	"US":  "api-us.libreview.io",
}

// Normalize upper-cases and trims a region code.
func (r Region) Normalize() Region {
	return Region(strings.ToUpper(strings.TrimSpace(string(r))))
}

// ResolveHost returns the API host for a region code.
func ResolveHost(region Region) (string, error) {
	host, ok := regionHosts[region.Normalize()]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegion, string(region))
	}
	return host, nil
}

// Regions returns the supported region codes in sorted order.
func Regions() []Region {
	regions := make([]Region, 0, len(regionHosts))
	for r := range regionHosts {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i] < regions[j] })
	return regions
}
