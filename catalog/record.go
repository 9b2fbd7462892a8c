package catalog

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Domain errors returned by the write services and store adapters.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")
)

// Field names understood by query conditions and store adapters.
const (
	FieldID       = "id"
	FieldArtist   = "artist"
	FieldAlbum    = "album"
	FieldFormat   = "format"
	FieldCategory = "category"
)

// Format is the physical or digital medium of a record.
type Format string

const (
	FormatVinyl    Format = "Vinyl"
	FormatCD       Format = "CD"
	FormatCassette Format = "Cassette"
	FormatDigital  Format = "Digital"
)

// Formats lists every known format.
func Formats() []Format {
	return []Format{FormatVinyl, FormatCD, FormatCassette, FormatDigital}
}

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	for _, known := range Formats() {
		if f == known {
			return true
		}
	}
	return false
}

// Category is the genre a record is shelved under.
type Category string

const (
	CategoryRock        Category = "Rock"
	CategoryJazz        Category = "Jazz"
	CategoryHipHop      Category = "Hip-Hop"
	CategoryClassical   Category = "Classical"
	CategoryPop         Category = "Pop"
	CategoryAlternative Category = "Alternative"
	CategoryIndie       Category = "Indie"
)

// Categories lists every known category.
func Categories() []Category {
	return []Category{
		CategoryRock,
		CategoryJazz,
		CategoryHipHop,
		CategoryClassical,
		CategoryPop,
		CategoryAlternative,
		CategoryIndie,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Record is a catalogue entry. ID is the unique sort key used by pagination.
type Record struct {
	ID        string    `json:"id"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album"`
	Price     float64   `json:"price"`
	Qty       int       `json:"qty"`
	Format    Format    `json:"format"`
	Category  Category  `json:"category"`
	MBID      string    `json:"mbid,omitempty"`
	TrackList []string  `json:"trackList,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Field returns the string value of a named field, or "" for unknown names.
func (r Record) Field(name string) string {
	switch name {
	case FieldID:
		return r.ID
	case FieldArtist:
		return r.Artist
	case FieldAlbum:
		return r.Album
	case FieldFormat:
		return string(r.Format)
	case FieldCategory:
		return string(r.Category)
	default:
		return ""
	}
}

// Validate checks the writable fields of a record.
func (r Record) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Artist, validation.Required, validation.Length(1, 256)),
		validation.Field(&r.Album, validation.Required, validation.Length(1, 256)),
		validation.Field(&r.Price, validation.Min(0.0)),
		validation.Field(&r.Qty, validation.Min(0)),
		validation.Field(&r.Format, validation.Required, validation.In(formatValues()...)),
		validation.Field(&r.Category, validation.Required, validation.In(categoryValues()...)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Order is a purchase of a quantity of one record.
type Order struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"recordId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the writable fields of an order.
func (o Order) Validate() error {
	err := validation.ValidateStruct(&o,
		validation.Field(&o.RecordID, validation.Required),
		validation.Field(&o.Quantity, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func formatValues() []any {
	values := make([]any, 0, len(Formats()))
	for _, f := range Formats() {
		values = append(values, f)
	}
	return values
}

func categoryValues() []any {
	values := make([]any, 0, len(Categories()))
	for _, c := range Categories() {
		values = append(values, c)
	}
	return values
}
