package timeular

// Activity is a category the upstream tracker records time against.
type Activity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Integration string `json:"integration"`
}

// ActivitiesResponse is the upstream list envelope.
type ActivitiesResponse struct {
	Activities []Activity `json:"activities"`
}

// ActivityRequest is the body for creating an activity. All three fields are
// always forwarded.
type ActivityRequest struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Integration string `json:"integration"`
}

// EditActivityRequest is a partial update; nil fields are left unchanged upstream.
type EditActivityRequest struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// DeleteResponse carries the upstream deletion-result list.
type DeleteResponse struct {
	Errors []string `json:"errors"`
}

type signInRequest struct {
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`
}

type signInResponse struct {
	Token string `json:"token"`
}

// Session is the bearer credential obtained from SignIn. It is immutable.
type Session struct {
	token string
}

// NewSession wraps an existing token.
func NewSession(token string) Session {
	return Session{token: token}
}

// Token returns the bearer token.
func (s Session) Token() string {
	return s.token
}

// Valid reports whether the session carries a token.
func (s Session) Valid() bool {
	return s.token != ""
}
