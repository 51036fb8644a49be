package models

// Source table names referenced by change events.
const (
	TableProfiles      = "profiles"
	TableGuides        = "guides"
	TableAssignments   = "tour_assignments"
	TableGuideRequests = "guide_requests"
)

// Collection identifies a client-facing collection in the change feed.
type Collection string

const (
	CollectionTourists    Collection = "tourists"
	CollectionGuides      Collection = "guides"
	CollectionAssignments Collection = "assignments"
	CollectionRequests    Collection = "guide_requests"
)

// ChangeAction describes what happened to an entity.
type ChangeAction string

const (
	ChangeActionInsert ChangeAction = "insert"
	ChangeActionUpdate ChangeAction = "update"
	ChangeActionDelete ChangeAction = "delete"
)

// ChangeEvent is emitted by services after a successful store write.
// UserType is set for profile events so the feed can tell tourist profiles
// apart from other person records.
type ChangeEvent struct {
	Table    string       `json:"table"`
	Action   ChangeAction `json:"action"`
	EntityID string       `json:"entity_id"`
	UserType string       `json:"user_type,omitempty"`
}

// CollectionUpdate tells subscribers a collection changed. Version is a
// monotonic token; clients drop any response carrying an older version than
// the one they already hold.
type CollectionUpdate struct {
	Collection Collection `json:"collection"`
	Version    uint64     `json:"version"`
}
