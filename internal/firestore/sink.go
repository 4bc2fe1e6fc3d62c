// Package firestore records submissions in Cloud Firestore.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/soaringjerry/checkbot/internal/services"
)

type submissionDoc struct {
	Date         string    `firestore:"date"`
	Slot         string    `firestore:"slot"`
	ContextKey   string    `firestore:"context_key"`
	IdentityName string    `firestore:"identity_name"`
	CreatedAt    time.Time `firestore:"created_at"`
	AnswerCount  int       `firestore:"answer_count"`
}

type answerDoc struct {
	SubmissionID string `firestore:"submission_id"`
	Position     int    `firestore:"position"`
	Question     string `firestore:"question"`
	Answer       string `firestore:"answer"`
	EvidenceRef  string `firestore:"evidence_ref"`
}

// Sink writes submissions/<id> and submissions/<id>/answers/<nnn> in one
// transaction.
type Sink struct {
	client     *firestore.Client
	collection string
}

func NewSink(ctx context.Context, projectID, database, collection string, opts ...option.ClientOption) (*Sink, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore sink")
	}
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	if collection == "" {
		collection = "submissions"
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Sink{client: client, collection: collection}, nil
}

func (s *Sink) Close() error {
	return s.client.Close()
}

func (s *Sink) submissionDoc(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

// Record creates the submission and its answers. An existing submission with
// the same id fails with services.ErrDuplicateSubmission.
func (s *Sink) Record(ctx context.Context, header services.SubmissionHeader, answers []services.AnswerRecord) error {
	head, docs := toDocs(header, answers)
	ref := s.submissionDoc(header.ID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(ref, head); err != nil {
			return err
		}
		for _, d := range docs {
			if err := tx.Create(ref.Collection("answers").Doc(answerID(d.Position)), d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isAlreadyExists(err) {
			return fmt.Errorf("firestore Record %s: %w", header.ID, services.ErrDuplicateSubmission)
		}
		return fmt.Errorf("firestore Record %s: %w", header.ID, err)
	}
	return nil
}

func toDocs(header services.SubmissionHeader, answers []services.AnswerRecord) (submissionDoc, []answerDoc) {
	head := submissionDoc{
		Date:         header.Date,
		Slot:         header.Slot,
		ContextKey:   header.ContextKey,
		IdentityName: header.IdentityName,
		CreatedAt:    header.CreatedAt.UTC(),
		AnswerCount:  len(answers),
	}
	docs := make([]answerDoc, 0, len(answers))
	for i, a := range answers {
		docs = append(docs, answerDoc{
			SubmissionID: header.ID,
			Position:     i + 1,
			Question:     a.Question,
			Answer:       a.Answer,
			EvidenceRef:  a.EvidenceRef,
		})
	}
	return head, docs
}

// answerID zero-pads so answers list in question order.
func answerID(position int) string {
	return fmt.Sprintf("%03d", position)
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}
