// Package vision finds the plate region in a photo with an OpenCV Haar
// cascade and produces the binarised crop handed to OCR.
package vision

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"plate-reader/internal/domain/reader"
)

type Params struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
}

type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	params     Params
}

// NewCascadeDetector loads the cascade file. The classifier is guarded by a
// mutex because OpenCV cascades are not safe for concurrent detection.
func NewCascadeDetector(cascadePath string, params Params) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("%w: cannot load cascade %s", reader.ErrDetectorUnavailable, cascadePath)
	}
	return &CascadeDetector{classifier: classifier, params: params}, nil
}

func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}

// FindPlate detects plates in the image at path and returns the first region,
// cropped from the colour source and Otsu-binarised.
func (d *CascadeDetector) FindPlate(imagePath string) (*reader.Crop, error) {
	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("%w: %s", reader.ErrImageUnreadable, imagePath)
	}
	defer img.Close()

	regions := d.detect(img)
	if len(regions) == 0 {
		return nil, reader.ErrNoPlate
	}

	rect := regions[0].Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if rect.Empty() {
		return nil, reader.ErrNoPlate
	}

	binary, err := binarize(img, rect)
	if err != nil {
		return nil, err
	}

	return &reader.Crop{
		Region:     rect,
		Candidates: len(regions),
		Image:      binary,
	}, nil
}

func (d *CascadeDetector) detect(img gocv.Mat) []image.Rectangle {
	gray := gocv.NewMat()
	defer gray.Close()
	blurred := gocv.NewMat()
	defer blurred.Close()

	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
	gocv.EqualizeHist(blurred, &gray)

	minSize := image.Pt(d.params.MinSize, d.params.MinSize)

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.DetectMultiScaleWithParams(gray, d.params.ScaleFactor, d.params.MinNeighbors, 0, minSize, image.Point{})
}

func binarize(img gocv.Mat, rect image.Rectangle) (image.Image, error) {
	region := img.Region(rect)
	defer region.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	binary := gocv.NewMat()
	defer binary.Close()

	gocv.CvtColor(region, &gray, gocv.ColorBGRToGray)
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	out, err := binary.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert plate crop: %w", err)
	}
	return out, nil
}
