package faces

import "image"

// Detection is one face found in an image. Coordinates are pixels in the
// image that was handed to the detector.
type Detection struct {
	// Score is the detector confidence in [0, 1].
	Score float32
	// Box is x1, y1, x2, y2.
	Box [4]float32
	// Landmarks holds the five facial points (left eye, right eye, nose,
	// left mouth corner, right mouth corner), or nil when the model
	// produced none.
	Landmarks *[5][2]float32
}

// Width returns the box width in pixels.
func (d Detection) Width() float32 { return d.Box[2] - d.Box[0] }

// Height returns the box height in pixels.
func (d Detection) Height() float32 { return d.Box[3] - d.Box[1] }

// Detector finds faces in an image.
type Detector interface {
	Detect(img image.Image) ([]Detection, error)
	Close()
}

// Embedder turns a face crop into an L2-normalized vector.
type Embedder interface {
	Embed(face image.Image) ([]float32, error)
	Close()
}
