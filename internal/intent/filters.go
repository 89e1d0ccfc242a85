package intent

import (
	"regexp"
	"strconv"
	"strings"

	"product-discovery/internal/models"
)

var (
	priceMaxPattern   = regexp.MustCompile(`(?i)(?:under|below|less than|at most|max(?:imum)?(?: of)?|cheaper than)\s*\$?\s*(\d+(?:\.\d+)?)`)
	priceMinPattern   = regexp.MustCompile(`(?i)(?:over|above|more than|at least|starting (?:at|from))\s*\$?\s*(\d+(?:\.\d+)?)`)
	priceRangePattern = regexp.MustCompile(`(?i)(?:between\s*)?\$?\s*(\d+(?:\.\d+)?)\s*(?:to|and|-)\s*\$?\s*(\d+(?:\.\d+)?)\s*(?:dollars|bucks|usd)?`)
)

// knownColors and the category/brand vocabularies below are the lexicon
// for cheap filter extraction. Anything outside them is left for the
// search index to resolve as free text.
var knownColors = []string{
	"black", "white", "red", "blue", "green", "yellow", "pink",
	"purple", "orange", "brown", "grey", "gray", "silver", "gold", "beige",
}

var knownCategories = map[string]string{
	"shoe":       "shoes",
	"shoes":      "shoes",
	"sneaker":    "shoes",
	"sneakers":   "shoes",
	"boot":       "shoes",
	"boots":      "shoes",
	"headphone":  "headphones",
	"headphones": "headphones",
	"earbud":     "headphones",
	"earbuds":    "headphones",
	"laptop":     "laptop",
	"laptops":    "laptop",
	"notebook":   "laptop",
	"phone":      "phone",
	"phones":     "phone",
	"smartphone": "phone",
	"watch":      "watch",
	"watches":    "watch",
	"smartwatch": "watch",
	"tv":         "tv",
	"television": "tv",
	"monitor":    "monitor",
	"monitors":   "monitor",
	"backpack":   "backpack",
	"backpacks":  "backpack",
	"jacket":     "jacket",
	"jackets":    "jacket",
	"camera":     "camera",
	"cameras":    "camera",
	"tablet":     "tablet",
	"tablets":    "tablet",
	"speaker":    "speaker",
	"speakers":   "speaker",
}

var knownBrands = []string{
	"nike", "adidas", "puma", "new balance", "asics",
	"sony", "bose", "sennheiser", "jbl",
	"apple", "samsung", "google", "dell", "lenovo", "hp", "asus",
	"canon", "nikon", "garmin", "fitbit", "north face", "patagonia",
}

// ExtractFilters parses structured constraints out of free text.
func ExtractFilters(text string) models.QueryFilters {
	var f models.QueryFilters
	lower := strings.ToLower(text)

	if m := priceRangePattern.FindStringSubmatch(lower); m != nil && strings.Contains(lower, "between") {
		if lo, err := strconv.ParseFloat(m[1], 64); err == nil {
			f.PriceMin = &lo
		}
		if hi, err := strconv.ParseFloat(m[2], 64); err == nil {
			f.PriceMax = &hi
		}
	} else {
		if m := priceMaxPattern.FindStringSubmatch(lower); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				f.PriceMax = &v
			}
		}
		if m := priceMinPattern.FindStringSubmatch(lower); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				f.PriceMin = &v
			}
		}
	}

	words := " " + lower + " "
	for _, color := range knownColors {
		if strings.Contains(words, " "+color+" ") {
			f.Color = normalizeColor(color)
			break
		}
	}

	for _, brand := range knownBrands {
		if strings.Contains(words, " "+brand+" ") {
			f.Brand = brand
			break
		}
	}

	for _, token := range strings.Fields(lower) {
		token = strings.Trim(token, ".,!?")
		if canonical, ok := knownCategories[token]; ok {
			f.Category = canonical
			break
		}
	}

	return f
}

func normalizeColor(color string) string {
	if color == "gray" {
		return "grey"
	}
	return color
}
