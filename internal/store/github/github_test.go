package github

import (
	"errors"
	"net/http"
	"testing"
	"time"

	gh "github.com/google/go-github/v68/github"

	"github.com/engram-notes/engram-backend/internal/store"
)

func respErr(status int, message string) *gh.ErrorResponse {
	return &gh.ErrorResponse{
		Response: &http.Response{StatusCode: status},
		Message:  message,
	}
}

func TestTranslate_Auth(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		err := translate(respErr(status, "Bad credentials"))
		if !errors.Is(err, store.ErrAuth) {
			t.Errorf("status %d: expected ErrAuth, got %v", status, err)
		}
	}
}

func TestTranslate_NotFound(t *testing.T) {
	err := translate(respErr(http.StatusNotFound, "Not Found"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTranslate_Conflict(t *testing.T) {
	// 409: the ref endpoints, including the empty-repository case.
	err := translate(respErr(http.StatusConflict, "Git Repository is empty."))
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for 409, got %v", err)
	}

	// 422: the contents endpoint reports guard failures this way.
	err = translate(respErr(http.StatusUnprocessableEntity, "engrams/a.engram does not match sha"))
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for 422 sha mismatch, got %v", err)
	}
	err = translate(respErr(http.StatusUnprocessableEntity, `"sha" wasn't supplied. path already exists`))
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for 422 existing path, got %v", err)
	}
}

func TestTranslate_UnrelatedUnprocessable(t *testing.T) {
	orig := respErr(http.StatusUnprocessableEntity, "Validation Failed")
	err := translate(orig)
	if errors.Is(err, store.ErrConflict) {
		t.Error("Unrelated 422 must not map to ErrConflict")
	}
	if !errors.Is(err, error(orig)) {
		t.Errorf("Expected original error passed through, got %v", err)
	}
}

func TestTranslate_RateLimit(t *testing.T) {
	reset := time.Now().Add(time.Minute)
	err := translate(&gh.RateLimitError{Rate: gh.Rate{Reset: gh.Timestamp{Time: reset}}})

	var rateErr *store.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
	if !rateErr.Reset.Equal(reset) {
		t.Errorf("Expected reset %v, got %v", reset, rateErr.Reset)
	}
}

func TestTranslate_AbuseRateLimit(t *testing.T) {
	retryAfter := 30 * time.Second
	err := translate(&gh.AbuseRateLimitError{RetryAfter: &retryAfter})

	var rateErr *store.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
	if rateErr.Reset.Before(time.Now()) {
		t.Errorf("Expected reset in the future, got %v", rateErr.Reset)
	}
}

func TestTranslate_Passthrough(t *testing.T) {
	orig := errors.New("network down")
	if err := translate(orig); err != orig {
		t.Errorf("Expected passthrough, got %v", err)
	}
}

func TestWrap_AttachesOperation(t *testing.T) {
	err := wrap("get ref", respErr(http.StatusNotFound, "Not Found"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if got := err.Error(); got != "get ref: "+store.ErrNotFound.Error() {
		t.Errorf("Unexpected message: %q", got)
	}
}
