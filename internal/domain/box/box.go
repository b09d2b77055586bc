// internal/domain/box/box.go
package box

import (
	"time"
)

// Box is a document collection box ("collection request") created by an owner.
// Corresponds to the 'document_boxes' table.
type Box struct {
	ID          int64
	Title       string
	Description string
	Deadline    time.Time
	Status      Status

	OwnerID             int64
	OwnerName           string
	OwnerEmail          string
	OwnerNotifyDeadline bool // false when the owner opted out of D-3 / D-Day mails

	// HasSubmitter is false for open/public submission boxes that have no
	// designated submitters. Rows written before the column existed read as true.
	HasSubmitter bool

	// RemindTypes are the legacy channel flags attached directly to the box.
	RemindTypes []RemindType

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemindType is a legacy reminder channel flag.
type RemindType string

const (
	RemindTypeEmail RemindType = "EMAIL"
	RemindTypeSMS   RemindType = "SMS"
	RemindTypePush  RemindType = "PUSH"
)

// HasRemindType reports whether the legacy flag t is set on the box.
func (b *Box) HasRemindType(t RemindType) bool {
	for _, rt := range b.RemindTypes {
		if rt == t {
			return true
		}
	}
	return false
}
