package models

import "time"

// PreferenceOption задаёт режим email-уведомлений пользователя для курса.
// Числовые значения совпадают со значениями в таблице предпочтений.
type PreferenceOption int

const (
	PreferenceNone PreferenceOption = iota + 1
	PreferenceAllPosts
	PreferenceOnlyFollowing
	PreferenceDailyDigest
	PreferenceWeeklyDigest
)

func (p PreferenceOption) String() string {
	switch p {
	case PreferenceNone:
		return "NONE"
	case PreferenceAllPosts:
		return "ALL_POSTS"
	case PreferenceOnlyFollowing:
		return "ONLY_FOLLOWING"
	case PreferenceDailyDigest:
		return "DAILY_DIGEST"
	case PreferenceWeeklyDigest:
		return "WEEKLY_DIGEST"
	default:
		return "UNKNOWN"
	}
}

func (p PreferenceOption) IsValid() bool {
	return p >= PreferenceNone && p <= PreferenceWeeklyDigest
}

// IsDigest сообщает, накапливаются ли события для пользователя в дайджест.
func (p PreferenceOption) IsDigest() bool {
	return p == PreferenceDailyDigest || p == PreferenceWeeklyDigest
}

type NotificationPreference struct {
	ID         int64
	UserID     int64
	CourseID   string
	Preference PreferenceOption
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
