package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"photovault/internal/classify"
	"photovault/internal/exifdata"
	"photovault/internal/logging"
	"photovault/internal/metrics"
	"photovault/internal/store"
	"photovault/internal/thumbnail"
	"photovault/internal/walker"
	"photovault/internal/workers"
)

// FastPass walks every user tree, registers new files and runs the
// cheap stages: thumbnail generation and metadata extraction. Users are
// independent (separate trees and databases) and are processed
// concurrently; one failing user does not stop the others.
func (s *Scheduler) FastPass(ctx context.Context) error {
	users := s.users()
	if len(users) == 0 {
		return nil
	}

	sem := make(chan struct{}, workers.ForIO(len(users)))
	var wg sync.WaitGroup
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(user string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.fastPassUser(ctx, user); err != nil && ctx.Err() == nil {
				logging.Error("fast pass for user %s failed: %v", user, err)
			}
		}(user)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) fastPassUser(ctx context.Context, user string) error {
	st, err := store.Open(s.cfg.DatabasePath(user))
	if err != nil {
		return err
	}
	defer st.Close()

	gen := s.generatorFor(user)

	return walker.Walk(s.cfg.UserDir(user), func(f walker.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		id, created, err := st.InsertPhotoIfAbsent(f.Path)
		if err != nil {
			return err
		}
		if created {
			metrics.FilesDiscovered.Inc()
			logging.Info("discovered %s", f.Path)
		}

		photo, err := st.PhotoByID(id)
		if err != nil {
			return err
		}
		if photo == nil {
			return fmt.Errorf("photo %d vanished after insert", id)
		}

		if !photo.ThumbDone {
			if outcome := s.thumbnailStage(ctx, st, gen, photo, f); outcome == PermanentFailure {
				return nil
			}
			// Re-read: the stage may have retired the row.
			photo, err = st.PhotoByID(id)
			if err != nil || photo == nil {
				return err
			}
		}

		// Kind can be empty on rows written before classification
		// existed; those get reclassified even though the flag is set.
		if photo.ThumbDone && (!photo.ExifDone || photo.Kind == "") {
			s.metadataStage(st, photo, f)
		}
		return nil
	})
}

// thumbnailStage generates the preview for one file. A generation
// failure means the file cannot be decoded at all, so the row is retired
// rather than retried forever.
func (s *Scheduler) thumbnailStage(ctx context.Context, st *store.Store, gen *thumbnail.Generator, photo *store.Photo, f walker.File) Outcome {
	if _, err := gen.Generate(ctx, f); err != nil {
		if ctx.Err() != nil {
			return record("thumbnail", TransientFailure)
		}
		logging.Warn("thumbnail failed for %s, retiring: %v", f.Path, err)
		if dbErr := st.MarkUnidentifiable(photo.ID); dbErr != nil {
			logging.Error("failed to retire %s: %v", f.Path, dbErr)
			return record("thumbnail", TransientFailure)
		}
		return record("thumbnail", PermanentFailure)
	}

	if err := st.MarkThumbnailDone(photo.ID); err != nil {
		logging.Error("failed to mark thumbnail done for %s: %v", f.Path, err)
		return record("thumbnail", TransientFailure)
	}
	return record("thumbnail", Done)
}

// metadataStage classifies the file and records its capture time and
// position. Videos carry no EXIF worth reading; their date comes from
// the filename.
func (s *Scheduler) metadataStage(st *store.Store, photo *store.Photo, f walker.File) Outcome {
	if classify.IsVideo(f.Path) {
		return s.finishMetadata(st, photo, classify.KindVideo, classify.DateFromFilename(f.Path), nil, nil)
	}

	meta, err := exifdata.Extract(f.Path)
	if err != nil {
		// The file may still be syncing; try again next pass.
		logging.Warn("metadata extraction failed for %s: %v", f.Path, err)
		return record("metadata", TransientFailure)
	}

	kind := classify.Image(f.Path, meta.HasCameraTags, classify.Kind(s.cfg.ClassifyDefault))
	taken := meta.Taken
	if taken == nil {
		taken = classify.DateFromFilename(f.Path)
	}
	return s.finishMetadata(st, photo, kind, taken, meta.Latitude, meta.Longitude)
}

func (s *Scheduler) finishMetadata(st *store.Store, photo *store.Photo, kind classify.Kind, taken *time.Time, lat, lon *float64) Outcome {
	if err := st.SetCaptureMetadata(photo.ID, taken, lat, lon); err != nil {
		logging.Error("failed to store metadata for %s: %v", photo.Path, err)
		return record("metadata", TransientFailure)
	}
	if err := st.SetKind(photo.ID, string(kind)); err != nil {
		logging.Error("failed to store kind for %s: %v", photo.Path, err)
		return record("metadata", TransientFailure)
	}
	if kind == classify.KindScreenshot {
		// Screenshots skip the vision tagger entirely. The guarded write
		// keeps reclassification from overwriting an edited description.
		if err := st.SetDescriptionIfEmpty(photo.ID, "Screenshot"); err != nil {
			logging.Error("failed to store description for %s: %v", photo.Path, err)
			return record("metadata", TransientFailure)
		}
	}
	// Videos and screenshots never go through face detection; closing
	// the flag here keeps them out of the slow pass queue.
	if kind == classify.KindVideo || kind == classify.KindScreenshot {
		if err := st.MarkFacesDone(photo.ID); err != nil {
			logging.Error("failed to mark faces done for %s: %v", photo.Path, err)
			return record("metadata", TransientFailure)
		}
	}
	if err := st.MarkExifDone(photo.ID); err != nil {
		logging.Error("failed to mark metadata done for %s: %v", photo.Path, err)
		return record("metadata", TransientFailure)
	}
	return record("metadata", Done)
}
