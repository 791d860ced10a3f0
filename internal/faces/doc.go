// Package faces detects faces in photos, filters out low quality
// detections, and assigns each accepted face to a per-user identity
// gallery by embedding similarity. New identities are created for
// confident faces that match nobody known.
package faces
