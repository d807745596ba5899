package textutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxBodyLength ограничивает видимый текст в уведомлении.
const MaxBodyLength = 160

// StripMarkup удаляет HTML-разметку, оставляя только видимый текст.
func StripMarkup(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return strings.TrimSpace(body)
	}

	return strings.TrimSpace(doc.Text())
}

// Simplify удаляет разметку и обрезает текст до MaxBodyLength символов,
// добавляя многоточие, если текст был длиннее. Обрезка считает только
// видимые символы, поэтому разметка удаляется до усечения.
func Simplify(body string) string {
	text := StripMarkup(body)

	runes := []rune(text)
	if len(runes) <= MaxBodyLength {
		return text
	}

	return string(runes[:MaxBodyLength]) + "..."
}
