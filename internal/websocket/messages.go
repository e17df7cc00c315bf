package websocket

import "time"

// Event types
const (
	TypeAuthenticate   = "authenticate"
	TypeAuthentication = "authentication"
	TypeSendMessage    = "sendMessage"
	TypeMessage        = "message"
	TypePing           = "ping"
	TypeError          = "error"
)

// Error codes carried in ErrorPayload
const (
	CodeInvalidJSON      = "invalid_json"
	CodeInvalidPayload   = "invalid_payload"
	CodeUnknownType      = "unknown_type"
	CodeNotAuthenticated = "not_authenticated"
	CodeSenderMismatch   = "sender_mismatch"
	CodeUnknownRecipient = "unknown_recipient"
	CodeMailboxFull      = "mailbox_full"
	CodeRateLimited      = "rate_limited"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// AuthenticatePayload is the object form of an authenticate event. Clients
// may also send the email as a bare string payload.
type AuthenticatePayload struct {
	Email string `json:"email"`
}

type AuthenticationPayload struct {
	Success bool `json:"success"`
}

type SendMessagePayload struct {
	RecipientEmail string `json:"recipientEmail"`
	SenderEmail    string `json:"senderEmail"`
	Message        string `json:"message"`
}

type MessagePayload struct {
	SenderEmail string    `json:"senderEmail"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
