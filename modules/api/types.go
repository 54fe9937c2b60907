package api

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// SignupRequest represents a signup request body.
type SignupRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

// LoginRequest represents a login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest carries a new avatar as a data URL.
type UpdateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

// SendMessageRequest is the body of a send. Text is accepted as an alias
// of Message.
type SendMessageRequest struct {
	Message string `json:"message"`
	Text    string `json:"text"`
	Image   string `json:"image"`
}

func (r SendMessageRequest) body() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Text
}
