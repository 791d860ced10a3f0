// Package tagger generates short scene descriptions for photos using a
// vision model. The capability is optional; without an API key the
// describe stage simply stays pending.
package tagger
