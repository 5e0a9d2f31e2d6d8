package models

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Status is the progress marker shared by orders and their items.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusReceived Status = "Received"
	StatusReady    Status = "Ready"
	StatusServed   Status = "Served"
)

// FinalStatusCompleted is the terminal marker stamped on history records.
const FinalStatusCompleted = "Completed"

var statusRank = map[Status]int{
	StatusPending:  0,
	StatusReceived: 1,
	StatusReady:    2,
	StatusServed:   3,
}

// Rank orders statuses along the lifecycle. Unknown values rank -1.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// ParseStatus accepts any casing and surrounding whitespace.
func ParseStatus(raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	for s := range statusRank {
		if strings.EqualFold(string(s), trimmed) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// UnmarshalBSONValue coerces legacy lower-case values ("pending") and rejects
// anything that is not a known status, so a malformed document fails decoding
// instead of leaking an arbitrary string into the lifecycle.
func (s *Status) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*s = ""
		return nil
	case bsontype.String:
		var value string
		if err := bson.UnmarshalValue(t, data, &value); err != nil {
			return err
		}
		if strings.TrimSpace(value) == "" {
			*s = ""
			return nil
		}
		parsed, err := ParseStatus(value)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	default:
		return fmt.Errorf("cannot decode %s into Status", t)
	}
}

// MarshalBSONValue always writes the canonical spelling.
func (s Status) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(string(s))
}
