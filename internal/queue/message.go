package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrMalformedMessage = errors.New("malformed queue message")

// Message is the only payload carried on the provisioning queue. Job data
// stays in the store; consumers re-read it by id.
type Message struct {
	JobID string `json:"job_id"`
}

func Encode(m Message) ([]byte, error) {
	if _, err := uuid.Parse(m.JobID); err != nil {
		return nil, fmt.Errorf("%w: job_id %q", ErrMalformedMessage, m.JobID)
	}
	return json.Marshal(m)
}

func Decode(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if m.JobID == "" {
		return Message{}, fmt.Errorf("%w: missing job_id", ErrMalformedMessage)
	}
	if _, err := uuid.Parse(m.JobID); err != nil {
		return Message{}, fmt.Errorf("%w: job_id %q", ErrMalformedMessage, m.JobID)
	}
	return m, nil
}
