package services

import (
	"context"
	"errors"
	"io"
	"time"
)

// Identity is the result of a successful roster lookup.
type Identity struct {
	Name       string
	EmployeeID string
	ContextKey string // outlet the employee is rostered at today
}

// QuestionRecord is one checklist question as presented to the user.
type QuestionRecord struct {
	Text          string `json:"text"`
	RequiresPhoto bool   `json:"requires_photo"`
}

// AnswerRecord is the recorded response to one question.
type AnswerRecord struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	EvidenceRef string `json:"evidence_ref,omitempty"`
}

// SubmissionHeader identifies one completed interview. It is minted when the
// slot is chosen and never changes afterwards.
type SubmissionHeader struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	Slot         string    `json:"slot"`
	ContextKey   string    `json:"context_key"`
	IdentityName string    `json:"identity_name"`
	CreatedAt    time.Time `json:"created_at"`
}

var (
	// ErrUnresolved is returned by an IdentityResolver when the phone number is
	// unknown or has no roster assignment for today.
	ErrUnresolved = errors.New("identity unresolved")
	// ErrDuplicateSubmission is returned by a SubmissionSink when the
	// submission id has already been recorded.
	ErrDuplicateSubmission = errors.New("submission already recorded")
)

// IdentityResolver maps a phone number to today's identity and outlet.
type IdentityResolver interface {
	Resolve(ctx context.Context, phone string) (Identity, error)
}

// QuestionCatalog returns the ordered questions for an outlet and slot.
type QuestionCatalog interface {
	QuestionsFor(ctx context.Context, contextKey, slot string) ([]QuestionRecord, error)
}

// EvidenceStore persists a staged file and returns a durable reference.
// Stores with a single namespace must keep files of different submissions
// apart; a repeated name within one submission may replace the earlier file.
type EvidenceStore interface {
	Store(ctx context.Context, submissionID, localPath, name string) (string, error)
}

// SubmissionSink records a finished interview as one batch.
type SubmissionSink interface {
	Record(ctx context.Context, header SubmissionHeader, answers []AnswerRecord) error
}

// Messenger delivers replies to a chat.
type Messenger interface {
	Send(ctx context.Context, chatID int64, reply Reply) error
}

// MediaFetcher downloads an uploaded file from the chat transport.
type MediaFetcher interface {
	Download(ctx context.Context, fileID string, dst io.Writer) error
}

// EventKind enumerates the inbound events the interview understands.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventStart
	EventContact
	EventText
	EventPhoto
	EventCancel
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventContact:
		return "contact"
	case EventText:
		return "text"
	case EventPhoto:
		return "photo"
	case EventCancel:
		return "cancel"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// PhotoVariant is one resolution of an uploaded photo.
type PhotoVariant struct {
	FileID   string
	Width    int
	Height   int
	FileSize int
}

// Event is a transport-neutral inbound message.
type Event struct {
	Kind   EventKind
	UserID int64
	ChatID int64

	// LanguageCode is the client language hint (e.g. "en-US").
	LanguageCode string

	Text          string
	Phone         string
	ContactUserID int64 // zero when the transport does not say whose contact it is
	Photos        []PhotoVariant
}

// Reply is an outbound prompt. Options render as quick-reply buttons.
type Reply struct {
	Text           string
	Options        []string
	RequestContact bool
	RemoveKeyboard bool
}
