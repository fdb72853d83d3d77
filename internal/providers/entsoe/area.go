package entsoe

import (
	"fmt"
	"sort"
	"strings"

	"gridline/internal/model"
)

// areas maps bidding-zone codes to their EIC domain identifiers on the
// transparency platform.
var areas = map[string]model.Area{
	"AT":      {Code: "AT", EIC: "10YAT-APG------L", Name: "Austria", TZ: "Europe/Vienna"},
	"BE":      {Code: "BE", EIC: "10YBE----------2", Name: "Belgium", TZ: "Europe/Brussels"},
	"CH":      {Code: "CH", EIC: "10YCH-SWISSGRIDZ", Name: "Switzerland", TZ: "Europe/Zurich"},
	"CZ":      {Code: "CZ", EIC: "10YCZ-CEPS-----N", Name: "Czech Republic", TZ: "Europe/Prague"},
	"DE_LU":   {Code: "DE_LU", EIC: "10Y1001A1001A82H", Name: "Germany-Luxembourg", TZ: "Europe/Berlin"},
	"DK1":     {Code: "DK1", EIC: "10YDK-1--------W", Name: "Denmark West", TZ: "Europe/Copenhagen"},
	"DK2":     {Code: "DK2", EIC: "10YDK-2--------M", Name: "Denmark East", TZ: "Europe/Copenhagen"},
	"ES":      {Code: "ES", EIC: "10YES-REE------0", Name: "Spain", TZ: "Europe/Madrid"},
	"FI":      {Code: "FI", EIC: "10YFI-1--------U", Name: "Finland", TZ: "Europe/Helsinki"},
	"FR":      {Code: "FR", EIC: "10YFR-RTE------C", Name: "France", TZ: "Europe/Paris"},
	"GB":      {Code: "GB", EIC: "10YGB----------A", Name: "Great Britain", TZ: "Europe/London"},
	"HU":      {Code: "HU", EIC: "10YHU-MAVIR----U", Name: "Hungary", TZ: "Europe/Budapest"},
	"IT_NORD": {Code: "IT_NORD", EIC: "10Y1001A1001A73I", Name: "Italy North", TZ: "Europe/Rome"},
	"NL":      {Code: "NL", EIC: "10YNL----------L", Name: "Netherlands", TZ: "Europe/Amsterdam"},
	"NO2":     {Code: "NO2", EIC: "10YNO-2--------T", Name: "Norway NO2", TZ: "Europe/Oslo"},
	"PL":      {Code: "PL", EIC: "10YPL-AREA-----S", Name: "Poland", TZ: "Europe/Warsaw"},
	"PT":      {Code: "PT", EIC: "10YPT-REN------W", Name: "Portugal", TZ: "Europe/Lisbon"},
	"SE3":     {Code: "SE3", EIC: "10Y1001A1001A46L", Name: "Sweden SE3", TZ: "Europe/Stockholm"},
}

// LookupArea resolves a bidding-zone code or a raw EIC identifier.
func LookupArea(code string) (model.Area, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		return model.Area{}, fmt.Errorf("entsoe: area code is required")
	}
	if area, ok := areas[trimmed]; ok {
		return area, nil
	}
	for _, area := range areas {
		if strings.EqualFold(area.EIC, strings.TrimSpace(code)) {
			return area, nil
		}
	}
	return model.Area{}, fmt.Errorf("entsoe: unknown area %q", code)
}

func listAreas() []model.Area {
	out := make([]model.Area, 0, len(areas))
	for _, area := range areas {
		out = append(out, area)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
