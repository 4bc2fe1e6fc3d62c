package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/soaringjerry/checkbot/internal/observability"
	"github.com/soaringjerry/checkbot/internal/utils"
)

var (
	DefaultSlots        = []string{"Morning", "Mid Day", "Closing"}
	DefaultAnswerLabels = []string{"Yes", "No"}
)

const defaultCallTimeout = 20 * time.Second

// InterviewDeps are the collaborators of the interview. All of them must be
// safe for concurrent use.
type InterviewDeps struct {
	Resolver  IdentityResolver
	Catalog   QuestionCatalog
	Evidence  EvidenceStore
	Sink      SubmissionSink
	Messenger Messenger
	Media     MediaFetcher
}

// InterviewOptions tune the interview. Zero values take defaults.
type InterviewOptions struct {
	Slots        []string
	AnswerLabels []string
	Location     *time.Location
	StagingDir   string
	CallTimeout  time.Duration
	SessionTTL   time.Duration // 0 keeps idle sessions until restart
}

// sessionEntry is removed from the map once it holds no session and no
// event is using it. refs is guarded by InterviewService.mu.
type sessionEntry struct {
	mu      sync.Mutex
	session *Session
	refs    int
}

// InterviewService drives one checklist interview per chat user.
type InterviewService struct {
	deps InterviewDeps

	slots        []string
	answerLabels []string
	location     *time.Location
	stagingDir   string
	callTimeout  time.Duration
	sessionTTL   time.Duration

	now         func() time.Time
	idGenerator func() string
	removeFile  func(string) error
	tracer      trace.Tracer

	mu       sync.Mutex
	sessions map[int64]*sessionEntry
}

// NewInterviewService wires the collaborators into a ready service.
func NewInterviewService(deps InterviewDeps, opts InterviewOptions) *InterviewService {
	s := &InterviewService{
		deps:         deps,
		slots:        opts.Slots,
		answerLabels: opts.AnswerLabels,
		location:     opts.Location,
		stagingDir:   opts.StagingDir,
		callTimeout:  opts.CallTimeout,
		sessionTTL:   opts.SessionTTL,
		now:          time.Now,
		idGenerator:  defaultSubmissionID,
		removeFile:   os.Remove,
		tracer:       otel.Tracer("github.com/soaringjerry/checkbot/internal/services"),
		sessions:     map[int64]*sessionEntry{},
	}
	if len(s.slots) == 0 {
		s.slots = DefaultSlots
	}
	if len(s.answerLabels) == 0 {
		s.answerLabels = DefaultAnswerLabels
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.stagingDir == "" {
		s.stagingDir = "checklist"
	}
	if s.callTimeout <= 0 {
		s.callTimeout = defaultCallTimeout
	}
	return s
}

func defaultSubmissionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// turn carries the per-event reply context.
type turn struct {
	ctx     context.Context
	chatID  int64
	locale  string
	log     *slog.Logger
	sendErr error
}

func (s *InterviewService) say(t *turn, r Reply) {
	if err := s.deps.Messenger.Send(t.ctx, t.chatID, r); err != nil {
		t.log.Warn("reply not delivered", "error", err)
		if t.sendErr == nil {
			t.sendErr = err
		}
	}
}

func (s *InterviewService) text(t *turn, key string, args ...any) string {
	return utils.Tf(t.locale, key, args...)
}

func (s *InterviewService) acquire(userID int64) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok {
		e = &sessionEntry{}
		s.sessions[userID] = e
	}
	e.refs++
	return e
}

// release must be called after e.mu is unlocked.
func (s *InterviewService) release(userID int64, e *sessionEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refs--
	if e.refs == 0 && e.session == nil {
		delete(s.sessions, userID)
	}
}

// HandleEvent processes one inbound event to completion. Events for the same
// user are serialized; events for different users run independently. The
// returned error only reports replies that could not be delivered.
func (s *InterviewService) HandleEvent(ctx context.Context, ev Event) error {
	e := s.acquire(ev.UserID)
	defer s.release(ev.UserID, e)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	t := &turn{
		ctx:    ctx,
		chatID: ev.ChatID,
		locale: utils.DetermineLocale(ev.LanguageCode, "", utils.SupportedLocales, "en"),
		log:    observability.LoggerFromContext(ctx).With("user_id", ev.UserID, "event", ev.Kind.String()),
	}

	switch ev.Kind {
	case EventStart:
		if e.session != nil {
			t.log.Info("discarding active session on start", "state", e.session.State())
		}
		e.session = newSession(ev.UserID, ev.ChatID, t.locale, now)
		s.say(t, Reply{
			Text:           s.text(t, "start.prompt"),
			Options:        []string{s.text(t, "start.button")},
			RequestContact: true,
		})
		return t.sendErr
	case EventCancel, EventReset:
		if e.session != nil {
			t.locale = e.session.Locale
			s.cancel(t, e.session)
			e.session = nil
		}
		key := "cancel.done"
		if ev.Kind == EventReset {
			key = "reset.done"
		}
		s.say(t, Reply{Text: s.text(t, key), RemoveKeyboard: true})
		return t.sendErr
	}

	sess := e.session
	if sess != nil && s.sessionTTL > 0 && now.Sub(sess.LastActivity) > s.sessionTTL {
		t.log.Info("session expired", "state", sess.State(), "idle", now.Sub(sess.LastActivity).String())
		e.session = nil
		t.locale = sess.Locale
		s.say(t, Reply{Text: s.text(t, "session.expired"), RemoveKeyboard: true})
		return t.sendErr
	}
	if sess == nil {
		s.say(t, Reply{Text: s.text(t, "start.hint")})
		return t.sendErr
	}

	sess.LastActivity = now
	t.locale = sess.Locale
	t.log = t.log.With("state", sess.State())

	switch sess.State() {
	case StateAwaitingContact:
		s.handleContact(t, sess, ev)
	case StateAwaitingSlot:
		s.handleSlot(t, sess, ev)
	case StateAwaitingAnswer:
		s.handleAnswer(t, sess, ev)
	case StateAwaitingEvidence:
		s.handleEvidence(t, sess, ev)
	}

	if sess.Terminal() {
		t.log.Info("session closed", "final_state", sess.State())
		sess.clear()
		e.session = nil
	}
	return t.sendErr
}

func (s *InterviewService) handleContact(t *turn, sess *Session, ev Event) {
	retry := Reply{
		Text:           s.text(t, "contact.use_button"),
		Options:        []string{s.text(t, "start.button")},
		RequestContact: true,
	}
	if ev.Kind != EventContact || strings.TrimSpace(ev.Phone) == "" {
		s.say(t, retry)
		return
	}
	if ev.ContactUserID != 0 && ev.ContactUserID != ev.UserID {
		retry.Text = s.text(t, "contact.not_own")
		s.say(t, retry)
		return
	}

	phone := NormalizePhone(ev.Phone)
	var ident Identity
	err := s.call(t.ctx, "identity.resolve", func(ctx context.Context) error {
		var err error
		ident, err = s.deps.Resolver.Resolve(ctx, phone)
		return err
	})
	switch {
	case errors.Is(err, ErrUnresolved):
		t.log.Info("identity unresolved")
		s.say(t, Reply{Text: s.text(t, "contact.rejected"), RemoveKeyboard: true})
		s.cancel(t, sess)
		return
	case err != nil:
		t.log.Error("identity lookup failed", "error", err)
		s.say(t, Reply{Text: s.text(t, "contact.failed", err.Error()), RemoveKeyboard: true})
		s.cancel(t, sess)
		return
	}

	sess.Identity = ident
	if err := sess.fire(t.ctx, evVerifyContact); err != nil {
		t.log.Error("state transition failed", "error", err)
		return
	}
	t.log.Info("identity resolved", "identity", ident.Name, "context", ident.ContextKey)
	s.say(t, Reply{Text: s.text(t, "slot.prompt"), Options: s.slots})
}

func (s *InterviewService) handleSlot(t *turn, sess *Session, ev Event) {
	slot, ok := matchOption(ev, s.slots)
	if !ok {
		s.say(t, Reply{Text: s.text(t, "slot.invalid"), Options: s.slots})
		return
	}

	sess.Slot = slot
	header := s.newHeader(sess)
	sess.Header = &header

	var questions []QuestionRecord
	err := s.call(t.ctx, "catalog.questions", func(ctx context.Context) error {
		var err error
		questions, err = s.deps.Catalog.QuestionsFor(ctx, sess.Identity.ContextKey, slot)
		return err
	})
	if err != nil {
		t.log.Error("catalog lookup failed", "error", err)
		s.say(t, Reply{Text: s.text(t, "catalog.failed", err.Error()), RemoveKeyboard: true})
		s.cancel(t, sess)
		return
	}
	if len(questions) == 0 {
		t.log.Info("no questions for slot", "slot", slot, "context", sess.Identity.ContextKey)
		s.say(t, Reply{Text: s.text(t, "catalog.empty"), RemoveKeyboard: true})
		s.cancel(t, sess)
		return
	}

	sess.Questions = questions
	sess.Cursor = 0
	sess.Answers = make([]AnswerRecord, 0, len(questions))
	if err := sess.fire(t.ctx, evChooseSlot); err != nil {
		t.log.Error("state transition failed", "error", err)
		return
	}
	t.log.Info("interview started", "submission_id", header.ID, "slot", slot, "questions", len(questions))
	s.askCurrent(t, sess)
}

func (s *InterviewService) handleAnswer(t *turn, sess *Session, ev Event) {
	q, ok := sess.currentQuestion()
	if !ok {
		s.askCurrent(t, sess)
		return
	}
	answer, ok := matchOption(ev, s.answerLabels)
	if !ok {
		s.say(t, Reply{Text: s.text(t, "answer.invalid"), Options: s.answerLabels})
		return
	}

	sess.Answers = append(sess.Answers, AnswerRecord{Question: q.Text, Answer: answer})
	if q.RequiresPhoto {
		if err := sess.fire(t.ctx, evRequirePhoto); err != nil {
			t.log.Error("state transition failed", "error", err)
			return
		}
		s.say(t, Reply{Text: s.text(t, "photo.prompt"), RemoveKeyboard: true})
		return
	}

	sess.Cursor++
	s.askCurrent(t, sess)
}

func (s *InterviewService) handleEvidence(t *turn, sess *Session, ev Event) {
	photo, ok := LargestPhoto(ev.Photos)
	if ev.Kind != EventPhoto || !ok {
		s.say(t, Reply{Text: s.text(t, "photo.invalid")})
		return
	}

	ref, err := s.stageAndStore(t, sess, photo)
	if err != nil {
		t.log.Error("evidence upload failed", "error", err)
		s.say(t, Reply{Text: s.text(t, "photo.failed", err.Error()), RemoveKeyboard: true})
		s.cancel(t, sess)
		return
	}

	sess.Answers[len(sess.Answers)-1].EvidenceRef = ref
	s.say(t, Reply{Text: s.text(t, "photo.uploaded")})

	sess.Cursor++
	if err := sess.fire(t.ctx, evStoreEvidence); err != nil {
		t.log.Error("state transition failed", "error", err)
		return
	}
	s.askCurrent(t, sess)
}

// askCurrent prompts for the question under the cursor, or submits once the
// cursor has run past the last question.
func (s *InterviewService) askCurrent(t *turn, sess *Session) {
	q, ok := sess.currentQuestion()
	if !ok {
		s.finalize(t, sess)
		return
	}
	s.say(t, Reply{
		Text:    s.text(t, "question.prompt", sess.Cursor+1, len(sess.Questions), q.Text),
		Options: s.answerLabels,
	})
}

func (s *InterviewService) cancel(t *turn, sess *Session) {
	if sess.Terminal() {
		return
	}
	if err := sess.fire(t.ctx, evCancel); err != nil {
		t.log.Error("state transition failed", "error", err)
	}
}

func (s *InterviewService) newHeader(sess *Session) SubmissionHeader {
	now := s.now().In(s.location)
	return SubmissionHeader{
		ID:           s.idGenerator(),
		Date:         now.Format("2006-01-02"),
		Slot:         sess.Slot,
		ContextKey:   sess.Identity.ContextKey,
		IdentityName: sess.Identity.Name,
		CreatedAt:    now,
	}
}

// call runs one collaborator call under the configured timeout and a span.
func (s *InterviewService) call(ctx context.Context, name string, fn func(ctx context.Context) error, opts ...trace.SpanStartOption) error {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, name, opts...)
	defer span.End()

	err := fn(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%s timed out after %s: %w", name, s.callTimeout, err)
	}
	if err != nil && !errors.Is(err, ErrUnresolved) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Sweep drops sessions idle for longer than the session TTL and returns how
// many were dropped. Sessions busy with an event are skipped. Entries left
// without a session are removed from the map.
func (s *InterviewService) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for userID, e := range s.sessions {
		if e.refs > 0 || !e.mu.TryLock() {
			continue
		}
		if e.session != nil && s.sessionTTL > 0 && now.Sub(e.session.LastActivity) > s.sessionTTL {
			e.session = nil
			dropped++
		}
		if e.session == nil {
			delete(s.sessions, userID)
		}
		e.mu.Unlock()
	}
	return dropped
}

// ActiveUsers reports how many users currently have a session or an event in
// flight.
func (s *InterviewService) ActiveUsers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func matchOption(ev Event, options []string) (string, bool) {
	if ev.Kind != EventText {
		return "", false
	}
	key := MatchKey(ev.Text)
	if key == "" {
		return "", false
	}
	for _, opt := range options {
		if MatchKey(opt) == key {
			return opt, true
		}
	}
	return "", false
}
