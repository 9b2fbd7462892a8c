package catalog

import "fmt"

// FilterParams narrows a record listing. Every field is optional and an
// empty value places no constraint on the result.
type FilterParams struct {
	Query    string   `json:"q,omitempty"`
	Artist   string   `json:"artist,omitempty"`
	Album    string   `json:"album,omitempty"`
	Format   Format   `json:"format,omitempty"`
	Category Category `json:"category,omitempty"`
}

// Validate rejects enumerated filters that name an unknown tag.
func (p FilterParams) Validate() error {
	if p.Format != "" && !p.Format.Valid() {
		return fmt.Errorf("%w: unknown format %q", ErrInvalid, p.Format)
	}
	if p.Category != "" && !p.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, p.Category)
	}
	return nil
}
