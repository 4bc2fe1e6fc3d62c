package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LargestPhoto picks the highest-resolution variant by pixel area, then by
// byte size. Later variants win ties.
func LargestPhoto(variants []PhotoVariant) (PhotoVariant, bool) {
	var best PhotoVariant
	found := false
	for _, v := range variants {
		if v.FileID == "" {
			continue
		}
		if !found {
			best, found = v, true
			continue
		}
		area, bestArea := v.Width*v.Height, best.Width*best.Height
		if area > bestArea || (area == bestArea && v.FileSize >= best.FileSize) {
			best = v
		}
	}
	return best, found
}

// evidenceNames returns the staging path and the display name for the
// evidence of the current question. Both are deterministic per identity and
// question, so a repeated upload within the session overwrites the earlier
// one.
func (s *InterviewService) evidenceNames(sess *Session) (string, string) {
	who := SanitizeFilename(sess.Identity.Name)
	ordinal := "_Q" + strconv.Itoa(sess.Cursor+1) + ".jpg"
	staged := filepath.Join(s.stagingDir, strconv.FormatInt(sess.UserID, 10), who+ordinal)
	display := SanitizeFilename(sess.Slot) + "_" + who + ordinal
	return staged, display
}

func (s *InterviewService) stageAndStore(t *turn, sess *Session, photo PhotoVariant) (string, error) {
	staged, display := s.evidenceNames(sess)
	if err := os.MkdirAll(filepath.Dir(staged), 0o755); err != nil {
		return "", fmt.Errorf("prepare staging dir: %w", err)
	}
	defer func() {
		if err := s.removeFile(staged); err != nil && !os.IsNotExist(err) {
			t.log.Warn("staged evidence not removed", "path", staged, "error", err)
		}
	}()

	err := s.call(t.ctx, "media.download", func(ctx context.Context) error {
		f, err := os.Create(staged)
		if err != nil {
			return err
		}
		if err := s.deps.Media.Download(ctx, photo.FileID, f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
	if err != nil {
		return "", fmt.Errorf("download photo: %w", err)
	}

	var ref string
	err = s.call(t.ctx, "evidence.store", func(ctx context.Context) error {
		var err error
		ref, err = s.deps.Evidence.Store(ctx, sess.Header.ID, staged, display)
		return err
	}, trace.WithAttributes(attribute.String("evidence.name", display)))
	if err != nil {
		return "", err
	}
	t.log.Info("evidence stored", "submission_id", sess.Header.ID, "name", display, "ref", ref)
	return ref, nil
}

// finalize writes the whole transcript to the sink in one call and closes
// the session. A sink failure is reported to the user and the session still
// completes.
func (s *InterviewService) finalize(t *turn, sess *Session) {
	s.say(t, Reply{Text: s.text(t, "submit.logging"), RemoveKeyboard: true})

	if err := sess.readyToSubmit(); err != nil {
		t.log.Error("refusing incomplete submission", "error", err)
		s.say(t, Reply{Text: s.text(t, "submit.failed", err.Error())})
		s.cancel(t, sess)
		return
	}

	header := *sess.Header
	answers := append([]AnswerRecord(nil), sess.Answers...)
	err := s.call(t.ctx, "submission.record", func(ctx context.Context) error {
		return s.deps.Sink.Record(ctx, header, answers)
	}, trace.WithAttributes(
		attribute.String("submission.id", header.ID),
		attribute.String("submission.slot", header.Slot),
		attribute.Int("submission.answers", len(answers)),
	))
	if err != nil {
		t.log.Error("submission not recorded", "submission_id", header.ID, "error", err)
		s.say(t, Reply{Text: s.text(t, "submit.failed", err.Error())})
	} else {
		t.log.Info("submission recorded", "submission_id", header.ID, "answers", len(answers))
		s.say(t, Reply{Text: s.text(t, "submit.saved", header.ID)})
	}

	if err := sess.fire(t.ctx, evFinish); err != nil {
		t.log.Error("state transition failed", "error", err)
	}
}
