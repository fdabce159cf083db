package domain

import "encoding/json"

// SectionMacro is one entry of the section discovery listing.
type SectionMacro struct {
	Section string `json:"{#SECTION}"`
}

// CheckMacro is one entry of the check discovery listing.
type CheckMacro struct {
	Section string `json:"{#SECTION}"`
	Key     string `json:"{#KEY}"`
}

// MarshalDiscovery wraps items as {"data": [...]}. A nil slice is
// rendered as an empty array.
func MarshalDiscovery[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(struct {
		Data []T `json:"data"`
	}{Data: items})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
