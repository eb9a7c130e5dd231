package platform

// QRCode is an issued login QR token. URL is what the companion app scans;
// AuthCode identifies the token when polling.
type QRCode struct {
	AuthCode string `json:"auth_code"`
	URL      string `json:"url"`
}

// PollOutcome is the result class of one QR status poll.
type PollOutcome int

const (
	// PollPending: code issued, not yet confirmed on the companion app.
	PollPending PollOutcome = iota
	// PollConfirmed: login finalized, the poll carries the credential.
	PollConfirmed
	// PollExpired: the QR token is dead; a new one must be issued.
	PollExpired
)

// Room is the operator's live room as the remote service reports it.
type Room struct {
	RoomID       int64  `json:"room_id"`
	Title        string `json:"title"`
	ParentAreaID int64  `json:"parent_area_id"`
	AreaID       int64  `json:"area_id"`
	AreaName     string `json:"area_name"`
	Live         bool   `json:"live"`
	Cover        string `json:"cover"`
}

// AuditInfo reports the title-review state after a room update. The platform
// may accept an update but hold the new title for manual review.
type AuditInfo struct {
	TitleStatus int    `json:"audit_title_status"`
	TitleReason string `json:"audit_title_reason"`
}

// StreamCredential is the RTMP ingest pair returned by a broadcast start.
// Never persisted; discarded on stop or process exit.
type StreamCredential struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Area is a child partition a room can be classified under.
type Area struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID int64  `json:"parent_id"`
}

// AreaGroup is a parent partition and its children.
type AreaGroup struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Children []Area `json:"children"`
}

// Account is the logged-in account's public profile plus its room brief.
type Account struct {
	MID        int64  `json:"mid"`
	Name       string `json:"name"`
	Face       string `json:"face"`
	RoomID     int64  `json:"room_id"`
	RoomTitle  string `json:"room_title"`
	LiveStatus int    `json:"live_status"`
}
