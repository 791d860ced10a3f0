// Package scheduler coordinates the enrichment pipeline. A fast pass
// discovers files and runs the cheap stages; a slow pass runs face
// recognition and scene description over prepared items. Stages report
// outcomes and the scheduler alone decides flag transitions, so every
// pass is idempotent.
package scheduler
