package models

type ForumObjectType string

const (
	ForumObjectThread   ForumObjectType = "thread"
	ForumObjectResponse ForumObjectType = "response"
	ForumObjectComment  ForumObjectType = "comment"
)

func (t ForumObjectType) IsValid() bool {
	switch t {
	case ForumObjectThread, ForumObjectResponse, ForumObjectComment:
		return true
	default:
		return false
	}
}

// ForumEvent описывает создание треда, ответа или комментария на форуме.
// EventID служит ключом идемпотентности при накоплении в дайджест.
type ForumEvent struct {
	EventID        string
	ThreadID       string
	DiscussionID   string
	CourseID       string
	Body           string
	Title          string
	URL            string
	AuthorID       int64
	AuthorUsername string
	AuthorEmail    string
	ObjectType     ForumObjectType
}

// SubscriptionLookupID возвращает идентификатор, по которому ищутся подписчики:
// для ответов и комментариев подписчики наследуются от родительского треда.
func (e *ForumEvent) SubscriptionLookupID() string {
	if e.ObjectType == ForumObjectThread {
		return e.ThreadID
	}

	return e.DiscussionID
}

// PostID выбирает идентификатор для канонической ссылки: тред при наличии
// заголовка, иначе родительское обсуждение.
func (e *ForumEvent) PostID() string {
	if e.Title != "" {
		return e.ThreadID
	}

	return e.DiscussionID
}
