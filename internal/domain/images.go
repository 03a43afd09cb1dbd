package domain

import "encoding/json"

// imageSet mirrors the IMAGES column shape in the analytics view.
type imageSet struct {
	Thumb string `json:"thumb"`
	Small string `json:"small"`
	Large string `json:"large"`
}

// ExtractImage pulls an image URL out of the raw IMAGES field of the
// analytics view. Preference order: small, thumb, large. Returns "" when the
// field is empty or malformed.
func ExtractImage(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	var imgs imageSet
	if err := json.Unmarshal(raw, &imgs); err != nil {
		return ""
	}

	switch {
	case imgs.Small != "":
		return imgs.Small
	case imgs.Thumb != "":
		return imgs.Thumb
	case imgs.Large != "":
		return imgs.Large
	}
	return ""
}
