package faces

// Quality gate thresholds.
const (
	// MinScore is the floor below which a detection is never considered.
	MinScore = 0.75
	// NoLandmarkScoreFloor applies when the detector produced no
	// landmarks; without geometry checks the confidence bar is higher.
	NoLandmarkScoreFloor = 0.90
	// MinFacePixels is the minimum box edge in pixels.
	MinFacePixels = 80
	// Aspect ratio bounds (width / height) for a plausible face.
	MinAspect = 0.5
	MaxAspect = 2.0
	// landmarkBoxTolerance lets landmarks sit slightly outside the box,
	// as fractions of its size.
	landmarkBoxTolerance = 0.20
	// minEyeSeparation is the minimum horizontal eye distance as a
	// fraction of box width; closer eyes indicate a profile or a bad
	// detection.
	minEyeSeparation = 0.15
)

// CheckQuality decides whether a detection is a usable frontal face.
// On rejection the reason names the failed check.
func CheckQuality(d Detection) (bool, string) {
	if d.Score < MinScore {
		return false, "low_score"
	}

	w, h := d.Width(), d.Height()
	if w < MinFacePixels || h < MinFacePixels {
		return false, "too_small"
	}
	if h <= 0 {
		return false, "degenerate_box"
	}
	aspect := w / h
	if aspect < MinAspect || aspect > MaxAspect {
		return false, "bad_aspect"
	}

	if d.Landmarks == nil {
		if d.Score < NoLandmarkScoreFloor {
			return false, "no_landmarks"
		}
		return true, ""
	}

	return checkLandmarks(d)
}

// checkLandmarks validates the five-point geometry: all points near the
// box, eyes above the nose, nose above the mouth, and eyes not collapsed
// together.
func checkLandmarks(d Detection) (bool, string) {
	lm := *d.Landmarks
	w, h := d.Width(), d.Height()

	tolX := w * landmarkBoxTolerance
	tolY := h * landmarkBoxTolerance
	for _, p := range lm {
		if p[0] < d.Box[0]-tolX || p[0] > d.Box[2]+tolX ||
			p[1] < d.Box[1]-tolY || p[1] > d.Box[3]+tolY {
			return false, "landmarks_outside_box"
		}
	}

	leftEye, rightEye, nose := lm[0], lm[1], lm[2]
	leftMouth, rightMouth := lm[3], lm[4]

	// Each eye must sit above the nose on its own; a tilted face can
	// keep the averaged eye line above the nose while one eye droops
	// below it.
	if leftEye[1] >= nose[1] || rightEye[1] >= nose[1] {
		return false, "bad_geometry"
	}
	eyeY := (leftEye[1] + rightEye[1]) / 2
	mouthY := (leftMouth[1] + rightMouth[1]) / 2
	if !(eyeY < nose[1] && nose[1] < mouthY) {
		return false, "bad_geometry"
	}

	eyeDist := rightEye[0] - leftEye[0]
	if eyeDist < 0 {
		eyeDist = -eyeDist
	}
	if eyeDist < w*minEyeSeparation {
		return false, "eyes_too_close"
	}

	return true, ""
}
