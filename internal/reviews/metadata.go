// Package reviews implements the car-review document pipeline: loading raw
// review JSON, extracting car metadata from filenames, and chunking review
// sections into retrievable documents.
package reviews

import (
	"regexp"
	"strings"
)

// CarDetails is the car metadata extracted from a review filename.
type CarDetails struct {
	Make     string `json:"make"`
	Model    string `json:"model"`
	BodyType string `json:"body_type"`
	Year     string `json:"year"`
}

// singleWordMakes are manufacturer names that appear as one filename token.
var singleWordMakes = map[string]struct{}{
	"abart": {}, "abarth": {}, "alpine": {}, "ariel": {}, "audi": {},
	"bmw": {}, "byd": {}, "bentley": {}, "bugatti": {}, "cupra": {},
	"caterham": {}, "chevrolet": {}, "chrysler": {}, "citroen": {}, "ds": {},
	"dacia": {}, "dodge": {}, "ferrari": {}, "fiat": {}, "fisker": {},
	"ford": {}, "genesis": {}, "honda": {}, "hyundai": {}, "ineos": {},
	"infiniti": {}, "isuzu": {}, "jaguar": {}, "jeep": {}, "kia": {},
	"lamborghini": {}, "leapmotor": {}, "lexus": {}, "lotus": {},
	"maserati": {}, "mazda": {}, "mclaren": {}, "mercedes": {}, "mg": {},
	"micro": {}, "mini": {}, "mitsubishi": {}, "nio": {}, "nissan": {},
	"omoda": {}, "perodua": {}, "peugeot": {}, "polestar": {}, "porsche": {},
	"proton": {}, "renault": {}, "saab": {}, "seat": {}, "skoda": {},
	"skywell": {}, "smart": {}, "ssangyong": {}, "subaru": {}, "suzuki": {},
	"tesla": {}, "toyota": {}, "vauxhall": {}, "volkswagen": {}, "volvo": {},
	"xpeng": {}, "zeekr": {},
}

// multiWordMakes are manufacturer names spanning two hyphenated tokens.
var multiWordMakes = map[string]struct{}{
	"mercedes-benz": {}, "alfa-romeo": {}, "aston-martin": {},
	"ds-automobiles": {}, "gwm-ora": {}, "land-rover": {}, "range-rover": {},
	"rolls-royce": {},
}

// excludeWords are filename tokens that are review boilerplate, not part of
// the model name.
var excludeWords = map[string]struct{}{
	"review": {}, "reviews": {}, "test": {}, "drive": {}, "preview": {},
	"long": {}, "term": {}, "final": {}, "report": {}, "second": {},
	"third": {}, "fourth": {}, "fifth": {}, "first": {}, "edition": {},
	"vignale": {}, "expert": {},
}

// bodyTypes are recognized body-style tokens.
var bodyTypes = map[string]struct{}{
	"hatchback": {}, "estate": {}, "saloon": {}, "suv": {}, "coupe": {},
	"convertible": {}, "mpv": {}, "pickup": {}, "4x4": {}, "hybrid": {},
	"electric": {}, "hatch": {}, "sport": {},
}

var yearPattern = regexp.MustCompile(`-(\d{4})(?:-|$)`)

// ParseFilename extracts car details from a review filename such as
// "bmw-m5-saloon-2024-expert-review.json" or
// "living-with-a-tesla-model-s-long-term-test-review.json".
func ParseFilename(filename string) CarDetails {
	// Reduce a path to its base name.
	filename = strings.ReplaceAll(filename, `\`, "/")
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		filename = filename[i+1:]
	}

	base := strings.TrimSuffix(filename, ".json")
	base = strings.ReplaceAll(base, "-expert-review", "")
	base = strings.ReplaceAll(base, "-long-term-test-review", "")

	// "living with" prefix marks long-term reviews.
	base = strings.TrimPrefix(base, "living-with-a-")
	base = strings.TrimPrefix(base, "living-with-an-")

	parts := strings.Split(base, "-")

	// Multi-word makes first, longest candidate wins.
	var make string
	for length := 2; length >= 1 && make == ""; length-- {
		if len(parts) < length {
			continue
		}
		candidate := strings.ToLower(strings.Join(parts[:length], "-"))
		if _, ok := multiWordMakes[candidate]; ok {
			make = candidate
			parts = parts[length:]
		}
	}
	if make == "" && len(parts) > 0 {
		candidate := strings.ToLower(parts[0])
		if _, ok := singleWordMakes[candidate]; ok {
			make = candidate
			parts = parts[1:]
		}
	}

	var modelParts []string
	for _, part := range parts {
		if _, excluded := excludeWords[strings.ToLower(part)]; !excluded {
			modelParts = append(modelParts, part)
		}
	}
	model := strings.ToLower(strings.Join(modelParts, "-"))

	var year string
	if m := yearPattern.FindStringSubmatch(base); m != nil {
		year = m[1]
	}

	var bodyTypeParts []string
	for _, part := range parts {
		lower := strings.ToLower(part)
		if _, ok := bodyTypes[lower]; ok {
			bodyTypeParts = append(bodyTypeParts, lower)
		}
	}
	bodyType := strings.Join(bodyTypeParts, "-")

	return CarDetails{
		Make:     make,
		Model:    model,
		BodyType: bodyType,
		Year:     year,
	}
}
