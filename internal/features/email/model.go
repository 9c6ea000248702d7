package email

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EmailStatus string

const (
	EmailQueued EmailStatus = "queued"
	EmailSent   EmailStatus = "sent"
	EmailFailed EmailStatus = "failed"
)

// Email is one outbox record. Scheduled report deliveries link back to the
// report and schedule that produced them.
type Email struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	From         string             `bson:"from" json:"from"`
	To           []string           `bson:"to" json:"to"`
	Subject      string             `bson:"subject" json:"subject"`
	Body         string             `bson:"body" json:"body"`
	Attachment   string             `bson:"attachment,omitempty" json:"attachment,omitempty"`
	ReportID     primitive.ObjectID `bson:"reportId,omitempty" json:"reportId,omitempty"`
	ScheduleID   primitive.ObjectID `bson:"scheduleId,omitempty" json:"scheduleId,omitempty"`
	Status       EmailStatus        `bson:"status" json:"status"`
	ErrorMessage string             `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	SentAt       *time.Time         `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
}
