// Package notify hands outbound member notifications to the mail queue.
package notify

import (
	"context"
	"time"

	"github.com/Skotchmaster/retail_console/internal/events"
)

const KindOTP = "OTP"

type Message struct {
	Kind      string    `json:"kind"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName,omitempty"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

type Queue struct {
	Publisher events.Publisher
	Topic     string
}

func NewQueue(p events.Publisher, topic string) *Queue {
	return &Queue{Publisher: p, Topic: topic}
}

func (q *Queue) SendOTP(ctx context.Context, email, code, fullName string) error {
	return q.Publisher.PublishEvent(ctx, q.Topic, email, Message{
		Kind:      KindOTP,
		Email:     email,
		FullName:  fullName,
		Code:      code,
		CreatedAt: time.Now().UTC(),
	})
}
