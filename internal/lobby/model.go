package lobby

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Room is the durable record for one collaborative lobby. YjsState is
// the source of truth for rehydration; ContentSnapshot is a derived
// projection and must always be re-derivable from YjsState. The two
// columns are only ever replaced together.
type Room struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Slug            string          `gorm:"uniqueIndex;not null" json:"slug"`
	Title           string          `gorm:"not null" json:"title"`
	OwnerID         string          `gorm:"not null" json:"owner_id"`
	YjsState        []byte          `gorm:"type:bytea" json:"-"`
	ContentSnapshot json.RawMessage `gorm:"type:jsonb;default:'{\"pages\":{}}'" json:"content_snapshot"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AuditLog is append-only. UserName is denormalized at write time and
// does not follow later renames.
type AuditLog struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID    uuid.UUID       `gorm:"type:uuid;index;not null" json:"room_id"`
	Room      Room            `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID    string          `json:"user_id"`
	UserName  string          `json:"user_name"`
	Action    string          `gorm:"not null" json:"action"`
	Detail    json.RawMessage `gorm:"type:jsonb" json:"detail"`
	CreatedAt time.Time       `json:"created_at"`
}
