package models

// ContactRequest is the POST /api/contact payload. Fields are decoded loosely:
// a non-string text counts as missing and any truthy bot_field trips the
// honeypot.
type ContactRequest struct {
	Text      any `json:"text"`
	FromEmail any `json:"fromEmail"`
	BotField  any `json:"bot_field"`
}

// ContactResponse is returned for accepted and silently discarded submissions.
// EmailSent is omitted for the silent case.
type ContactResponse struct {
	Success   bool  `json:"success"`
	EmailSent *bool `json:"emailSent,omitempty"`
}

// SendEmailRequest is the POST /api/admin/email payload.
type SendEmailRequest struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Text      string `json:"text"`
	FromEmail string `json:"fromEmail"`
}

type SendEmailResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
}
