package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"photovault/internal/classify"
	"photovault/internal/faces"
	"photovault/internal/logging"
	"photovault/internal/store"
	"photovault/internal/thumbnail"
	"photovault/internal/walker"
)

// SlowPass runs the expensive stages over everything the fast pass has
// prepared: face detection and matching, then scene descriptions.
func (s *Scheduler) SlowPass(ctx context.Context) error {
	for _, user := range s.users() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.slowPassUser(ctx, user); err != nil {
			logging.Error("slow pass for user %s failed: %v", user, err)
		}
	}
	return nil
}

func (s *Scheduler) slowPassUser(ctx context.Context, user string) error {
	st, err := store.Open(s.cfg.DatabasePath(user))
	if err != nil {
		return err
	}
	defer st.Close()

	if err := s.facePass(ctx, st, user); err != nil {
		return err
	}
	return s.describePass(ctx, st, user)
}

func (s *Scheduler) facePass(ctx context.Context, st *store.Store, user string) error {
	if s.detector == nil || s.embedder == nil {
		logging.Debug("face models not configured, leaving face stage pending")
		return nil
	}

	pending, err := st.PendingFaces()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	engine, err := faces.NewEngine(s.detector, s.embedder, st, s.cfg.ThumbnailDir(user), user, s.cfg.FaceMatchThreshold)
	if err != nil {
		return err
	}

	logging.Info("face pass for %s: %d photos pending", user, len(pending))
	for _, photo := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.faceStage(engine, st, photo)
	}
	return nil
}

// faceStage runs face processing for one photo. Kinds that cannot
// contain detectable faces are marked done without work so the pending
// queue drains, and files deleted since discovery are marked the same
// way.
func (s *Scheduler) faceStage(engine *faces.Engine, st *store.Store, photo *store.Photo) Outcome {
	switch classify.Kind(photo.Kind) {
	case classify.KindVideo, classify.KindScreenshot, classify.KindUnidentifiable:
		if err := st.MarkFacesDone(photo.ID); err != nil {
			logging.Error("failed to mark faces done for %s: %v", photo.Path, err)
			return record("faces", TransientFailure)
		}
		return record("faces", Skipped)
	}

	if _, err := os.Stat(photo.Path); err != nil {
		logging.Warn("file missing for face stage, skipping: %s", photo.Path)
		if err := st.MarkFacesDone(photo.ID); err != nil {
			return record("faces", TransientFailure)
		}
		return record("faces", Skipped)
	}

	linked, err := engine.Process(photo)
	if errors.Is(err, faces.ErrPersist) {
		// Write failures are retryable; leave the flag down so the next
		// pass picks the photo up again.
		logging.Warn("face persistence failed for %s, will retry: %v", photo.Path, err)
		return record("faces", TransientFailure)
	}
	if err != nil {
		// Decode and detection failures are deterministic; close the
		// flag so the row does not poison every later pass.
		logging.Warn("face processing failed for %s, marking done: %v", photo.Path, err)
		if err := st.MarkFacesDone(photo.ID); err != nil {
			return record("faces", TransientFailure)
		}
		return record("faces", PermanentFailure)
	}

	if err := st.MarkFacesDone(photo.ID); err != nil {
		logging.Error("failed to mark faces done for %s: %v", photo.Path, err)
		return record("faces", TransientFailure)
	}
	logging.Debug("face stage done for %s: %d identities linked", photo.Path, linked)
	return record("faces", Done)
}

func (s *Scheduler) describePass(ctx context.Context, st *store.Store, user string) error {
	if s.describe == nil {
		logging.Debug("tagger not configured, leaving describe stage pending")
		return nil
	}

	pending, err := st.PendingDescriptions()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	gen := s.generatorFor(user)
	logging.Info("describe pass for %s: %d photos pending", user, len(pending))
	for _, photo := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.describeStage(ctx, st, gen, user, photo)
	}
	return nil
}

// describeStage tags one photo using its thumbnail, which is smaller and
// already oriented.
func (s *Scheduler) describeStage(ctx context.Context, st *store.Store, gen *thumbnail.Generator, user string, photo *store.Photo) Outcome {
	f, err := s.fileFor(user, photo.Path)
	if err != nil {
		logging.Warn("cannot derive thumbnail for %s: %v", photo.Path, err)
		return record("describe", TransientFailure)
	}

	thumbPath := gen.PathFor(f)
	if _, err := os.Stat(thumbPath); err != nil {
		logging.Warn("thumbnail missing for %s, skipping description", photo.Path)
		return record("describe", TransientFailure)
	}

	description, err := s.describe.Describe(ctx, thumbPath)
	if err != nil {
		logging.Warn("description failed for %s: %v", photo.Path, err)
		return record("describe", TransientFailure)
	}

	if err := st.SetDescription(photo.ID, description); err != nil {
		logging.Error("failed to store description for %s: %v", photo.Path, err)
		return record("describe", TransientFailure)
	}
	logging.Debug("described %s: %s", photo.Path, description)
	return record("describe", Done)
}

// fileFor reconstructs the walker view of a stored path, which is laid
// out as <user dir>/<device>/files/<rel>.
func (s *Scheduler) fileFor(user, path string) (walker.File, error) {
	rel, err := filepath.Rel(s.cfg.UserDir(user), path)
	if err != nil {
		return walker.File{}, err
	}
	parts := strings.SplitN(filepath.ToSlash(rel), "/", 3)
	if len(parts) != 3 || parts[1] != "files" {
		return walker.File{}, fmt.Errorf("path %s is not under a device files directory", path)
	}
	return walker.File{Path: path, Device: parts[0], Rel: filepath.FromSlash(parts[2])}, nil
}
