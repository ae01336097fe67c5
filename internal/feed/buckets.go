package feed

import "strings"

// Region buckets used by the diversity penalty windows.
const (
	RegionCaribbean = "caribbean"
	RegionLatam     = "latam"
	RegionEurope    = "europe"
	RegionAsia      = "asia"
	RegionAfricaME  = "africa-me"
	RegionDomestic  = "domestic"
	RegionAmericas  = "americas"
	RegionOceania   = "oceania"
	RegionOther     = "other"
)

// countryRegions backs classification when a record carries no continent.
var countryRegions = map[string]string{
	"usa":                "domestic",
	"united states":      "domestic",
	"mexico":             "latam",
	"brazil":             "latam",
	"argentina":          "latam",
	"colombia":           "latam",
	"peru":               "latam",
	"costa rica":         "latam",
	"jamaica":            "caribbean",
	"bahamas":            "caribbean",
	"aruba":              "caribbean",
	"dominican republic": "caribbean",
	"canada":             "americas",
	"france":             "europe",
	"italy":              "europe",
	"spain":              "europe",
	"portugal":           "europe",
	"greece":             "europe",
	"japan":              "asia",
	"thailand":           "asia",
	"vietnam":            "asia",
	"indonesia":          "asia",
	"morocco":            "africa-me",
	"egypt":              "africa-me",
	"south africa":       "africa-me",
	"united arab emirates": "africa-me",
	"australia":          "oceania",
	"new zealand":        "oceania",
	"fiji":               "oceania",
}

// RegionBucket classifies a destination into a coarse geographic bucket by
// continent substring, falling back to the country lookup.
func RegionBucket(d Destination) string {
	c := strings.ToLower(strings.TrimSpace(d.Continent))
	switch {
	case c == "":
		if r, ok := countryRegions[strings.ToLower(strings.TrimSpace(d.Country))]; ok {
			return r
		}
		return RegionOther
	case strings.Contains(c, "caribbean"):
		return RegionCaribbean
	case strings.Contains(c, "south america"), strings.Contains(c, "central america"):
		return RegionLatam
	case strings.Contains(c, "europe"):
		return RegionEurope
	case strings.Contains(c, "asia"):
		return RegionAsia
	case strings.Contains(c, "africa"), strings.Contains(c, "middle east"):
		return RegionAfricaME
	case strings.Contains(c, "north america"):
		if strings.EqualFold(strings.TrimSpace(d.Country), "usa") {
			return RegionDomestic
		}
		return RegionAmericas
	case strings.Contains(c, "oceania"):
		return RegionOceania
	default:
		return RegionOther
	}
}

// vibeBuckets maps a primary vibe tag to its category.
var vibeBuckets = map[string]string{
	"beach":     "beach",
	"tropical":  "beach",
	"mountain":  "outdoor",
	"nature":    "outdoor",
	"adventure": "outdoor",
	"winter":    "outdoor",
	"city":      "urban",
	"nightlife": "urban",
	"culture":   "cultural",
	"historic":  "cultural",
	"foodie":    "cultural",
	"romantic":  "premium",
	"luxury":    "premium",
}

// VibeBucket classifies a destination by its primary (first) vibe tag.
func VibeBucket(d Destination) string {
	if b, ok := vibeBuckets[strings.ToLower(strings.TrimSpace(d.PrimaryVibe()))]; ok {
		return b
	}
	return "other"
}
