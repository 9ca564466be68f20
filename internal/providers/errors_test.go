package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorKind
	}{
		{429, KindRateLimited},
		{401, KindUnauthorized},
		{403, KindUnauthorized},
		{500, KindUnavailable},
		{502, KindUnavailable},
		{503, KindUnavailable},
		{504, KindUnavailable},
		{529, KindUnavailable},
		{400, KindTransport},
		{404, KindTransport},
	}
	for _, tt := range tests {
		if got := kindForStatus(tt.code); got != tt.want {
			t.Errorf("kindForStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", statusError("p", 429, "slow down"))
	k, ok := KindOf(err)
	if !ok || k != KindRateLimited {
		t.Errorf("KindOf = %v, %v; want rate limited", k, ok)
	}
	if !IsRateLimited(err) {
		t.Error("IsRateLimited should be true")
	}
	if IsAuthError(err) {
		t.Error("IsAuthError should be false")
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf(plain) should not be ok")
	}
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	e := statusError("p", 500, strings.Repeat("x", 2000))
	if len(e.Body) != maxErrorBody+3 {
		t.Errorf("body length = %d, want %d", len(e.Body), maxErrorBody+3)
	}
	if !strings.Contains(e.Error(), "status 500") {
		t.Errorf("Error() = %q, want status", e.Error())
	}
}

func TestClassifyKeepsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := classify(ctx, "p", errors.New("dial failed"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("classify error %v should wrap context.Canceled", err)
	}
	if k, _ := KindOf(err); k != KindTransport {
		t.Errorf("kind = %v, want transport", k)
	}
}
