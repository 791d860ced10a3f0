package faces

import "testing"

// goodDetection is a frontal face with plausible five-point geometry.
func goodDetection() Detection {
	lm := [5][2]float32{
		{60, 70},   // left eye
		{140, 70},  // right eye
		{100, 110}, // nose
		{70, 150},  // left mouth
		{130, 150}, // right mouth
	}
	return Detection{
		Score:     0.92,
		Box:       [4]float32{0, 0, 200, 200},
		Landmarks: &lm,
	}
}

func TestCheckQuality(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Detection)
		wantOK bool
		reason string
	}{
		{
			name:   "good frontal face passes",
			mutate: func(d *Detection) {},
			wantOK: true,
		},
		{
			name:   "score below floor",
			mutate: func(d *Detection) { d.Score = 0.5 },
			reason: "low_score",
		},
		{
			name: "face too small",
			mutate: func(d *Detection) {
				d.Box = [4]float32{0, 0, 50, 50}
				lm := [5][2]float32{{15, 17}, {35, 17}, {25, 27}, {17, 37}, {33, 37}}
				d.Landmarks = &lm
			},
			reason: "too_small",
		},
		{
			name: "too wide",
			mutate: func(d *Detection) {
				d.Box = [4]float32{0, 0, 300, 100}
			},
			reason: "bad_aspect",
		},
		{
			name: "too tall",
			mutate: func(d *Detection) {
				d.Box = [4]float32{0, 0, 80, 200}
			},
			reason: "bad_aspect",
		},
		{
			name: "no landmarks with ordinary score",
			mutate: func(d *Detection) {
				d.Landmarks = nil
				d.Score = 0.8
			},
			reason: "no_landmarks",
		},
		{
			name: "no landmarks with very high score passes",
			mutate: func(d *Detection) {
				d.Landmarks = nil
				d.Score = 0.95
			},
			wantOK: true,
		},
		{
			name: "landmark far outside box",
			mutate: func(d *Detection) {
				d.Landmarks[2] = [2]float32{400, 110}
			},
			reason: "landmarks_outside_box",
		},
		{
			name: "eyes below nose",
			mutate: func(d *Detection) {
				d.Landmarks[0][1] = 120
				d.Landmarks[1][1] = 120
			},
			reason: "bad_geometry",
		},
		{
			name: "one eye below nose",
			mutate: func(d *Detection) {
				// Averaged eye line (107.5) still clears the nose (110);
				// the right eye alone does not.
				d.Landmarks[1] = [2]float32{140, 145}
			},
			reason: "bad_geometry",
		},
		{
			name: "nose below mouth",
			mutate: func(d *Detection) {
				d.Landmarks[2][1] = 180
			},
			reason: "bad_geometry",
		},
		{
			name: "eyes collapsed together",
			mutate: func(d *Detection) {
				d.Landmarks[0] = [2]float32{95, 70}
				d.Landmarks[1] = [2]float32{105, 70}
			},
			reason: "eyes_too_close",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := goodDetection()
			tt.mutate(&d)
			ok, reason := CheckQuality(d)
			if ok != tt.wantOK {
				t.Errorf("CheckQuality() ok = %v, want %v (reason %q)", ok, tt.wantOK, reason)
			}
			if !tt.wantOK && reason != tt.reason {
				t.Errorf("CheckQuality() reason = %q, want %q", reason, tt.reason)
			}
		})
	}
}
