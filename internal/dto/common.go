package dto

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PageParams defines query parameters for listing endpoints.
type PageParams struct {
	PageToken string `form:"pageToken"`
}
