package models

type EmailTemplate string

const (
	TemplateImmediate EmailTemplate = "forum_immediate"
	TemplateDigest    EmailTemplate = "forum_digest"
)

type Recipient struct {
	UserID   int64  `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// EmailNotification несёт полностью собранный контекст письма
// для канала доставки.
type EmailNotification struct {
	Recipient  Recipient      `json:"recipient"`
	Language   string         `json:"language"`
	Template   EmailTemplate  `json:"template"`
	CourseID   string         `json:"courseId"`
	CourseName string         `json:"courseName"`
	Subject    string         `json:"subject"`
	Context    map[string]any `json:"context"`
}

type UserProfile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Language string `json:"language"`
}
