package services

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"
)

// Interview states.
const (
	StateAwaitingContact  = "awaiting_contact"
	StateAwaitingSlot     = "awaiting_slot"
	StateAwaitingAnswer   = "awaiting_answer"
	StateAwaitingEvidence = "awaiting_evidence"
	StateCompleted        = "completed"
	StateCancelled        = "cancelled"
)

const (
	evVerifyContact = "verify_contact"
	evChooseSlot    = "choose_slot"
	evRequirePhoto  = "require_photo"
	evStoreEvidence = "store_evidence"
	evFinish        = "finish"
	evCancel        = "cancel"
)

var openStates = []string{
	StateAwaitingContact,
	StateAwaitingSlot,
	StateAwaitingAnswer,
	StateAwaitingEvidence,
}

// Session is the in-memory state of one user's interview. It is owned by the
// InterviewService and only touched while that user's lock is held.
type Session struct {
	UserID int64
	ChatID int64
	Locale string

	Identity  Identity
	Slot      string
	Header    *SubmissionHeader
	Questions []QuestionRecord
	Cursor    int
	Answers   []AnswerRecord

	StartedAt    time.Time
	LastActivity time.Time

	machine *fsm.FSM
}

func newSession(userID, chatID int64, locale string, now time.Time) *Session {
	return &Session{
		UserID:       userID,
		ChatID:       chatID,
		Locale:       locale,
		StartedAt:    now,
		LastActivity: now,
		machine:      newInterviewFSM(),
	}
}

func newInterviewFSM() *fsm.FSM {
	return fsm.NewFSM(
		StateAwaitingContact,
		fsm.Events{
			{Name: evVerifyContact, Src: []string{StateAwaitingContact}, Dst: StateAwaitingSlot},
			{Name: evChooseSlot, Src: []string{StateAwaitingSlot}, Dst: StateAwaitingAnswer},
			{Name: evRequirePhoto, Src: []string{StateAwaitingAnswer}, Dst: StateAwaitingEvidence},
			{Name: evStoreEvidence, Src: []string{StateAwaitingEvidence}, Dst: StateAwaitingAnswer},
			{Name: evFinish, Src: []string{StateAwaitingAnswer}, Dst: StateCompleted},
			{Name: evCancel, Src: openStates, Dst: StateCancelled},
		},
		fsm.Callbacks{},
	)
}

// State returns the current state name.
func (s *Session) State() string {
	return s.machine.Current()
}

// Terminal reports whether the session has completed or been cancelled.
func (s *Session) Terminal() bool {
	st := s.State()
	return st == StateCompleted || st == StateCancelled
}

func (s *Session) fire(ctx context.Context, event string) error {
	if err := s.machine.Event(ctx, event); err != nil {
		return fmt.Errorf("session %d: %s from %s: %w", s.UserID, event, s.State(), err)
	}
	return nil
}

func (s *Session) currentQuestion() (QuestionRecord, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Questions) {
		return QuestionRecord{}, false
	}
	return s.Questions[s.Cursor], true
}

// readyToSubmit checks that every question has an answer and that every
// photo question carries evidence.
func (s *Session) readyToSubmit() error {
	if s.Header == nil {
		return fmt.Errorf("submission header missing")
	}
	if len(s.Answers) != len(s.Questions) {
		return fmt.Errorf("have %d answers for %d questions", len(s.Answers), len(s.Questions))
	}
	for i, q := range s.Questions {
		if q.RequiresPhoto && s.Answers[i].EvidenceRef == "" {
			return fmt.Errorf("question %d is missing photo evidence", i+1)
		}
	}
	return nil
}

func (s *Session) clear() {
	s.Identity = Identity{}
	s.Slot = ""
	s.Header = nil
	s.Questions = nil
	s.Cursor = 0
	s.Answers = nil
}
