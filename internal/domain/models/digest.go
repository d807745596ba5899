package models

import "time"

// DigestItem хранит тело события сырым, упрощение выполняется при отправке.
type DigestItem struct {
	EventID        string          `json:"eventId"`
	ThreadID       string          `json:"threadId"`
	DiscussionID   string          `json:"discussionId"`
	CourseID       string          `json:"courseId"`
	Body           string          `json:"body"`
	Title          string          `json:"title,omitempty"`
	URL            string          `json:"url"`
	AuthorID       int64           `json:"authorId"`
	AuthorUsername string          `json:"authorUsername"`
	AuthorEmail    string          `json:"authorEmail"`
	ObjectType     ForumObjectType `json:"objectType"`
}

// NotificationDigest уникален для пары (пользователь, курс). С пустым
// списком Items дайджест не подлежит отправке, даже если интервал с момента
// последней отправки истёк.
type NotificationDigest struct {
	ID         int64
	UserID     int64
	CourseID   string
	DigestType PreferenceOption
	Items      []DigestItem
	LastSent   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type DigestCadence string

const (
	CadenceDaily  DigestCadence = "daily"
	CadenceWeekly DigestCadence = "weekly"
)

// Interval возвращает минимальный интервал между отправками дайджеста.
func (c DigestCadence) Interval() time.Duration {
	if c == CadenceWeekly {
		return 7 * 24 * time.Hour
	}

	return 24 * time.Hour
}

func (c DigestCadence) Preference() PreferenceOption {
	if c == CadenceWeekly {
		return PreferenceWeeklyDigest
	}

	return PreferenceDailyDigest
}

func (c DigestCadence) IsValid() bool {
	return c == CadenceDaily || c == CadenceWeekly
}

func NewDigestItem(event *ForumEvent) DigestItem {
	return DigestItem{
		EventID:        event.EventID,
		ThreadID:       event.ThreadID,
		DiscussionID:   event.DiscussionID,
		CourseID:       event.CourseID,
		Body:           event.Body,
		Title:          event.Title,
		URL:            event.URL,
		AuthorID:       event.AuthorID,
		AuthorUsername: event.AuthorUsername,
		AuthorEmail:    event.AuthorEmail,
		ObjectType:     event.ObjectType,
	}
}
