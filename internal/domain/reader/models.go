package reader

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// Crop is the binarised plate region cut from a source image.
type Crop struct {
	Region     image.Rectangle
	Candidates int
	Image      image.Image
}

type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func RegionOf(r image.Rectangle) Region {
	return Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Run is one detect/crop/OCR/correct pass over a single image.
type Run struct {
	ID            uuid.UUID `json:"id"`
	SourceImage   string    `json:"source_image"`
	Region        Region    `json:"region"`
	Candidates    int       `json:"candidates"`
	CropPath      string    `json:"crop_path"`
	TextPath      string    `json:"text_path"`
	CropURL       string    `json:"crop_url,omitempty"`
	RawText       string    `json:"raw_text"`
	CorrectedText string    `json:"corrected_text"`
	Layout        string    `json:"layout"`
	Engine        string    `json:"engine"`
	CreatedAt     time.Time `json:"created_at"`
}

type RunFilter struct {
	Plate  string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type CorrectionResult struct {
	Raw       string `json:"raw"`
	Corrected string `json:"corrected"`
	Layout    string `json:"layout"`
}
