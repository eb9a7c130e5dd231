// Package protocol defines the command surface between the livectl core and
// its front ends (CLI today, GUI later). Every front end speaks the same
// method set and receives either a payload or a structured error.
package protocol

// RPC method names exposed by the command router.
const (
	MethodLoginStart   = "login.start"
	MethodLoginPoll    = "login.poll"
	MethodLoginRefresh = "login.refresh"
	MethodLogout       = "logout"
	MethodRoomInfo     = "room.info"
	MethodRoomUpdate   = "room.update"
	MethodLiveStart    = "live.start"
	MethodLiveStop     = "live.stop"
	MethodAreasList    = "areas.list"
	MethodAccountInfo  = "account.info"
)

// Response carries either a success payload or a structured error.
type Response struct {
	OK      bool        `json:"ok"`
	Payload interface{} `json:"payload,omitempty"`
	Error   *ErrorShape `json:"error,omitempty"`
}

// NewOKResponse creates a success response.
func NewOKResponse(payload interface{}) *Response {
	return &Response{OK: true, Payload: payload}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(code, message string) *Response {
	return &Response{OK: false, Error: &ErrorShape{Code: code, Message: message}}
}
