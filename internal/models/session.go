package models

import "time"

// Session is the persisted part of a customer ordering session. The duration
// is configuration, not state.
type Session struct {
	Key       string    `bson:"_id" json:"sessionId"`
	TableID   string    `bson:"tableId" json:"tableId"`
	StartTime time.Time `bson:"startTime" json:"startTime"`
}
