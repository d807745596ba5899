package textutil_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/central-university-dev/go-forum-notifier/internal/common/textutil"
)

func TestStripMarkup(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "test-body", textutil.StripMarkup("<p>test-body</p>"))
	assert.Equal(t, "bold and plain", textutil.StripMarkup("<b>bold</b> and plain"))
	assert.Equal(t, "plain text", textutil.StripMarkup("plain text"))
}

func TestSimplify_ShortBody(t *testing.T) {
	t.Parallel()

	result := textutil.Simplify("<p>короткий текст</p>")

	assert.Equal(t, "короткий текст", result)
}

func TestSimplify_LongBodyTruncated(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("a", 300)

	result := textutil.Simplify("<div>" + body + "</div>")

	assert.Len(t, result, textutil.MaxBodyLength+3)
	assert.True(t, strings.HasSuffix(result, "..."))
	assert.Equal(t, strings.Repeat("a", textutil.MaxBodyLength), strings.TrimSuffix(result, "..."))
}

func TestSimplify_MarkupNotCounted(t *testing.T) {
	t.Parallel()

	// Разметка длиннее лимита, но видимый текст короткий.
	body := "<div class=\"" + strings.Repeat("x", 200) + "\">видимый текст</div>"

	result := textutil.Simplify(body)

	assert.Equal(t, "видимый текст", result)
}

func TestSimplify_ExactBoundary(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("b", textutil.MaxBodyLength)

	result := textutil.Simplify(body)

	assert.Equal(t, body, result)
	assert.False(t, strings.HasSuffix(result, "..."))
}
