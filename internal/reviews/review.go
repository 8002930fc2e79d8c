package reviews

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Section is one titled block of review text.
type Section struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// Review is a raw car-review article as produced by the scraping pipeline.
type Review struct {
	Title      string     `json:"title"`
	Category   string     `json:"category"`
	Sections   []Section  `json:"sections"`
	CarDetails CarDetails `json:"car_details"`
}

// LoadReview reads and parses a review JSON file. If the file carries no
// car_details (older scrapes), details are recovered from the filename.
func LoadReview(path string) (*Review, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading review %s: %w", path, err)
	}

	var review Review
	if err := json.Unmarshal(data, &review); err != nil {
		return nil, fmt.Errorf("parsing review %s: %w", path, err)
	}

	if review.CarDetails == (CarDetails{}) {
		review.CarDetails = ParseFilename(path)
	}

	return &review, nil
}

// Metadata flattens the review header into the document metadata mapping
// used for equality filtering. All values are lowercased.
func (r *Review) Metadata() map[string]string {
	return map[string]string{
		"title":      r.Title,
		"category":   strings.ToLower(r.Category),
		"make":       strings.ToLower(r.CarDetails.Make),
		"model":      strings.ToLower(r.CarDetails.Model),
		"body_type":  strings.ToLower(r.CarDetails.BodyType),
		"model_year": r.CarDetails.Year,
	}
}
