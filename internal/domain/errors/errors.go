package errors

import (
	"fmt"
)

type ErrUserNotFound struct {
	UserID int64
}

func (e *ErrUserNotFound) Error() string {
	return fmt.Sprintf("пользователь не найден: %d", e.UserID)
}

func (e *ErrUserNotFound) Is(target error) bool {
	_, ok := target.(*ErrUserNotFound)
	return ok
}

type ErrCourseNotFound struct {
	CourseID string
}

func (e *ErrCourseNotFound) Error() string {
	return "курс не найден: " + e.CourseID
}

func (e *ErrCourseNotFound) Is(target error) bool {
	_, ok := target.(*ErrCourseNotFound)
	return ok
}

type ErrPreferenceNotFound struct {
	UserID   int64
	CourseID string
}

func (e *ErrPreferenceNotFound) Error() string {
	return fmt.Sprintf("предпочтение не найдено для пользователя %d в курсе %s", e.UserID, e.CourseID)
}

func (e *ErrPreferenceNotFound) Is(target error) bool {
	_, ok := target.(*ErrPreferenceNotFound)
	return ok
}

type ErrDigestNotFound struct {
	UserID   int64
	CourseID string
}

func (e *ErrDigestNotFound) Error() string {
	return fmt.Sprintf("дайджест не найден для пользователя %d в курсе %s", e.UserID, e.CourseID)
}

func (e *ErrDigestNotFound) Is(target error) bool {
	_, ok := target.(*ErrDigestNotFound)
	return ok
}

type ErrInvalidForumObjectType struct {
	ObjectType string
}

func (e *ErrInvalidForumObjectType) Error() string {
	return "неизвестный тип объекта форума: " + e.ObjectType
}

func (e *ErrInvalidForumObjectType) Is(target error) bool {
	_, ok := target.(*ErrInvalidForumObjectType)
	return ok
}

type ErrUnknownDigestCadence struct {
	Cadence string
}

func (e *ErrUnknownDigestCadence) Error() string {
	return "неизвестная периодичность дайджеста: " + e.Cadence
}

func (e *ErrUnknownDigestCadence) Is(target error) bool {
	_, ok := target.(*ErrUnknownDigestCadence)
	return ok
}

type ErrInvalidPreferenceValue struct {
	Value int
}

func (e *ErrInvalidPreferenceValue) Error() string {
	return fmt.Sprintf("некорректное значение предпочтения: %d", e.Value)
}

func (e *ErrInvalidPreferenceValue) Is(target error) bool {
	_, ok := target.(*ErrInvalidPreferenceValue)
	return ok
}

type ErrUnknownNotifierType struct {
	Type string
}

func (e *ErrUnknownNotifierType) Error() string {
	return "неизвестный тип нотификатора: " + e.Type
}

type ErrUnknownDBAccessType struct {
	AccessType string
}

func (e *ErrUnknownDBAccessType) Error() string {
	return fmt.Sprintf("неизвестный тип доступа к базе данных: %s", e.AccessType)
}

type ErrBuildSQLQuery struct {
	Operation string
	Cause     error
}

func (e *ErrBuildSQLQuery) Error() string {
	return fmt.Sprintf("ошибка при построении SQL запроса для %s: %v", e.Operation, e.Cause)
}

func (e *ErrBuildSQLQuery) Unwrap() error {
	return e.Cause
}

type ErrSQLExecution struct {
	Operation string
	Cause     error
}

func (e *ErrSQLExecution) Error() string {
	return fmt.Sprintf("ошибка при выполнении SQL запроса для %s: %v", e.Operation, e.Cause)
}

func (e *ErrSQLExecution) Unwrap() error {
	return e.Cause
}

type ErrSQLScan struct {
	Entity string
	Cause  error
}

func (e *ErrSQLScan) Error() string {
	return fmt.Sprintf("ошибка при сканировании %s: %v", e.Entity, e.Cause)
}

func (e *ErrSQLScan) Unwrap() error {
	return e.Cause
}

type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %d", e.StatusCode)
}
