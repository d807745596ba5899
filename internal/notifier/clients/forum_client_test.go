package clients_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/central-university-dev/go-forum-notifier/internal/config"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		ExternalRequestTimeout:     5 * time.Second,
		RetryCount:                 3,
		RetryBackoff:               100 * time.Millisecond,
		RetryableStatusCodes:       []int{500, 502, 503, 504},
		CBSlidingWindowSize:        100,
		CBMinimumRequiredCalls:     10,
		CBFailureRateThreshold:     90,
		CBPermittedCallsInHalfOpen: 3,
		CBWaitDurationInOpenState:  10 * time.Second,
	}
}

func TestForumClient_Pagination(t *testing.T) {
	// Arrange
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	pages := map[string]string{
		"1": `{"collection": [{"subscriber_id": 1}, {"subscriber_id": 2}], "page": 1, "num_pages": 3}`,
		"2": `{"collection": [{"subscriber_id": 3}, {"subscriber_id": 2}], "page": 2, "num_pages": 3}`,
		"3": `{"collection": [{"subscriber_id": 4}], "page": 3, "num_pages": 3}`,
	}

	var requestedPages []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requestedPages = append(requestedPages, page)

		w.Header().Set("Content-Type", "application/json")

		if _, err := w.Write([]byte(pages[page])); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	}))
	defer server.Close()

	client := clients.NewForumClient(server.URL, testConfig(), logger)

	// Act
	subscribers, err := client.GetThreadSubscribers(context.Background(), "t1")

	// Assert
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, requestedPages)
	assert.Equal(t, []int64{1, 2, 3, 4}, subscribers)
}

func TestForumClient_SinglePage(t *testing.T) {
	// Arrange
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	requestCount := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requestCount++

		w.Header().Set("Content-Type", "application/json")

		response := `{"collection": [{"subscriber_id": 7}], "page": 1, "num_pages": 1}`
		if _, err := w.Write([]byte(response)); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	}))
	defer server.Close()

	client := clients.NewForumClient(server.URL, testConfig(), logger)

	// Act
	subscribers, err := client.GetThreadSubscribers(context.Background(), "t1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, requestCount)
	assert.Equal(t, []int64{7}, subscribers)
}

func TestForumClient_ServerError(t *testing.T) {
	// Arrange
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := clients.NewForumClient(server.URL, testConfig(), logger)

	// Act
	_, err := client.GetThreadSubscribers(context.Background(), "t1")

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("%d", http.StatusBadRequest))
}
