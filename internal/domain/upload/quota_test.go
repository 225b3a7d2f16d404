package upload

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soundtide/soundtide-backend/internal/infra/api"
)

func quotaCoordinator(t *testing.T, planID string, count int, now time.Time) (*Coordinator, *string) {
	t.Helper()
	var since string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/profile":
			w.Write([]byte(`{"plan_id":"` + planID + `"}`))
		case "/api/songs/count":
			since = r.URL.Query().Get("since")
			w.Write([]byte(`{"count":` + itoa(count) + `}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)

	c := NewCoordinator(api.NewClient(srv.URL, "tok"), WithClock(func() time.Time { return now }))
	return c, &since
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	s := ""
	for n > 0 {
		s = string(rune('0'+n%10)) + s
		n /= 10
	}
	return s
}

func TestQuotaBlockedAtLimit(t *testing.T) {
	c, _ := quotaCoordinator(t, "free", 1, time.Now())
	q, err := c.CheckQuota(context.Background())
	if err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}
	if q.Usage != 1 || q.Limit != 1 {
		t.Errorf("quota = %+v", q)
	}
	if !q.Blocked() {
		t.Error("usage=1 limit=1 must be blocked")
	}
	if q.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", q.Remaining())
	}
}

func TestQuotaOpenBelowLimit(t *testing.T) {
	c, _ := quotaCoordinator(t, "free", 0, time.Now())
	q, err := c.CheckQuota(context.Background())
	if err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}
	if q.Blocked() {
		t.Error("usage=0 limit=1 must not be blocked")
	}
}

func TestQuotaProPlanLimit(t *testing.T) {
	c, _ := quotaCoordinator(t, "monthly_pro", 4, time.Now())
	q, err := c.CheckQuota(context.Background())
	if err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}
	if q.Limit != 10 {
		t.Errorf("limit = %d, want 10", q.Limit)
	}
	if q.Blocked() {
		t.Error("4/10 must not be blocked")
	}
	if q.Remaining() != 6 {
		t.Errorf("remaining = %d, want 6", q.Remaining())
	}
}

func TestQuotaUnknownPlanFallsBackToFree(t *testing.T) {
	if UploadLimitFor("mystery_tier") != UploadLimitFor("free") {
		t.Error("unknown plan must use the free limit")
	}
}

func TestQuotaCountsSinceStartOfMonth(t *testing.T) {
	now := time.Date(2026, time.August, 31, 15, 4, 5, 0, time.UTC)
	c, since := quotaCoordinator(t, "free", 0, now)

	if _, err := c.CheckQuota(context.Background()); err != nil {
		t.Fatalf("CheckQuota returned error: %v", err)
	}

	want := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	if *since != want {
		t.Errorf("since = %q, want %q", *since, want)
	}
}

func TestSelectFileRefusedWhenBlocked(t *testing.T) {
	c, _ := quotaCoordinator(t, "free", 1, time.Now())

	err := c.SelectFile(context.Background(), File{URI: "file:///tmp/a.mp3", Name: "a.mp3"})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("err = %v, want ErrQuotaExceeded", err)
	}
	if c.Draft().File != nil {
		t.Error("blocked selection must not touch the draft")
	}
}

func TestSelectFileAcceptedBelowLimit(t *testing.T) {
	c, _ := quotaCoordinator(t, "free", 0, time.Now())

	if err := c.SelectFile(context.Background(), File{URI: "file:///tmp/a.mp3", Name: "a.mp3"}); err != nil {
		t.Fatalf("SelectFile returned error: %v", err)
	}
	d := c.Draft()
	if d.File == nil || d.Title != "a" {
		t.Errorf("draft after selection: %+v", d)
	}
}

func TestStartOfMonth(t *testing.T) {
	loc := time.FixedZone("JST", 9*3600)
	now := time.Date(2026, time.February, 14, 3, 0, 0, 0, loc)
	got := startOfMonth(now)

	if got.Day() != 1 || got.Month() != time.February || got.Hour() != 0 {
		t.Errorf("startOfMonth = %v", got)
	}
	if got.Location() != loc {
		t.Error("start of month must stay in the caller's location")
	}
}
