package anchor

import (
	"testing"
	"time"
)

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusActive, StatusExpired, StatusLocked, StatusFlagged} {
		if !s.Valid() {
			t.Errorf("Status(%s).Valid() = false, want true", s)
		}
	}
	for _, s := range []Status{"", "active", "DELETED"} {
		if s.Valid() {
			t.Errorf("Status(%q).Valid() = true, want false", s)
		}
	}
}

func TestVisibility_Valid(t *testing.T) {
	for _, v := range []Visibility{VisibilityPublic, VisibilityPrivate, VisibilityCircleOnly} {
		if !v.Valid() {
			t.Errorf("Visibility(%s).Valid() = false, want true", v)
		}
	}
	for _, v := range []Visibility{"", "public", "FRIENDS_ONLY"} {
		if v.Valid() {
			t.Errorf("Visibility(%q).Valid() = true, want false", v)
		}
	}
}

func TestAnchor_Clone(t *testing.T) {
	alt := 120.5
	max := 10
	expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

	a := testAnchor("a1", "user1")
	a.Altitude = &alt
	a.MaxUnlock = &max
	a.ExpirationTime = &expiry
	a.Tags = []string{"art", "mural"}

	c := a.Clone()
	*c.Altitude = 999
	*c.MaxUnlock = 1
	*c.ExpirationTime = expiry.Add(time.Hour)
	c.Tags[0] = "mutated"

	if *a.Altitude != 120.5 {
		t.Error("Clone shares the altitude pointer")
	}
	if *a.MaxUnlock != 10 {
		t.Error("Clone shares the max_unlock pointer")
	}
	if !a.ExpirationTime.Equal(expiry) {
		t.Error("Clone shares the expiration_time pointer")
	}
	if a.Tags[0] != "art" {
		t.Error("Clone shares the tags slice")
	}
}
