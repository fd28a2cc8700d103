package anchor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anchor-collective/anchor/internal/geo"
)

func testAnchor(id, creator string) *Anchor {
	now := time.Now()
	return &Anchor{
		ID:            id,
		CreatorID:     creator,
		Title:         "Test Anchor",
		Location:      geo.Point{Lat: 40.4237, Lng: -86.9212},
		Status:        StatusActive,
		Visibility:    VisibilityPublic,
		UnlockRadius:  DefaultUnlockRadius,
		CurrentUnlock: 0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestInMemoryRepository_InsertAndGet(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	a := testAnchor("a1", "user1")
	a.Tags = []string{"art", "mural"}

	if err := repo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "Test Anchor" {
		t.Errorf("title = %q, want %q", got.Title, "Test Anchor")
	}
	if got.Location.Lat != 40.4237 || got.Location.Lng != -86.9212 {
		t.Errorf("location = %+v, want original coordinates", got.Location)
	}

	// The returned copy must not alias the stored record.
	got.Tags[0] = "mutated"
	again, _ := repo.GetByID(ctx, "a1")
	if again.Tags[0] != "art" {
		t.Error("mutating a returned anchor leaked into the repository")
	}
}

func TestInMemoryRepository_InsertConflict(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.Insert(ctx, testAnchor("a1", "user1")); err != nil {
		t.Fatalf("first Insert() error = %v", err)
	}
	if err := repo.Insert(ctx, testAnchor("a1", "user2")); err != ErrAnchorExists {
		t.Errorf("second Insert() error = %v, want ErrAnchorExists", err)
	}
}

func TestInMemoryRepository_GetMissing(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := repo.GetByID(context.Background(), "nope"); err != ErrAnchorNotFound {
		t.Errorf("GetByID() error = %v, want ErrAnchorNotFound", err)
	}
}

func TestInMemoryRepository_UpdatePreservesCounter(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	a := testAnchor("a1", "user1")
	if err := repo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := repo.IncrementUnlock(ctx, "a1"); err != nil {
		t.Fatalf("IncrementUnlock() error = %v", err)
	}

	// A stale caller copy must not roll the counter back.
	stale := a.Clone()
	stale.Title = "Renamed"
	stale.CurrentUnlock = 0
	if err := repo.Update(ctx, stale); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repo.GetByID(ctx, "a1")
	if got.Title != "Renamed" {
		t.Errorf("title = %q, want %q", got.Title, "Renamed")
	}
	if got.CurrentUnlock != 1 {
		t.Errorf("current_unlock = %d, want 1", got.CurrentUnlock)
	}
}

func TestInMemoryRepository_Delete(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.Insert(ctx, testAnchor("a1", "user1")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := repo.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, "a1"); err != ErrAnchorNotFound {
		t.Errorf("GetByID() after delete error = %v, want ErrAnchorNotFound", err)
	}
	if err := repo.Delete(ctx, "a1"); err != ErrAnchorNotFound {
		t.Errorf("second Delete() error = %v, want ErrAnchorNotFound", err)
	}
}

func TestInMemoryRepository_WithinRadius(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	center := geo.Point{Lat: 0, Lng: 0}

	// Roughly 0.1 km, 5 km, and 40 km north of the center.
	// One degree of latitude is about 111.195 km.
	distances := map[string]float64{
		"close": 0.1,
		"mid":   5,
		"far":   40,
	}
	for id, km := range distances {
		a := testAnchor(id, "user1")
		a.Location = geo.Point{Lat: km / 111.195, Lng: 0}
		if err := repo.Insert(ctx, a); err != nil {
			t.Fatalf("Insert(%s) error = %v", id, err)
		}
	}

	results, err := repo.WithinRadius(ctx, center, 50_000)
	if err != nil {
		t.Fatalf("WithinRadius() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	wantOrder := []string{"close", "mid", "far"}
	for i, want := range wantOrder {
		if results[i].Anchor.ID != want {
			t.Errorf("results[%d] = %s, want %s", i, results[i].Anchor.ID, want)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].DistanceMeters < results[i-1].DistanceMeters {
			t.Error("results are not in non-decreasing distance order")
		}
	}

	// A 1 km radius only catches the closest anchor.
	near, err := repo.WithinRadius(ctx, center, 1_000)
	if err != nil {
		t.Fatalf("WithinRadius() error = %v", err)
	}
	if len(near) != 1 || near[0].Anchor.ID != "close" {
		t.Errorf("1km radius results = %v, want only 'close'", len(near))
	}
}

func TestInMemoryRepository_WithinRadius_Empty(t *testing.T) {
	repo := NewInMemoryRepository()
	results, err := repo.WithinRadius(context.Background(), geo.Point{Lat: 0, Lng: 0}, 1_000)
	if err != nil {
		t.Fatalf("WithinRadius() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestInMemoryRepository_IncrementUnlock_Unbounded(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.Insert(ctx, testAnchor("a1", "user1")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	for i := 1; i <= 10; i++ {
		count, err := repo.IncrementUnlock(ctx, "a1")
		if err != nil {
			t.Fatalf("IncrementUnlock() #%d error = %v", i, err)
		}
		if count != i {
			t.Errorf("count = %d, want %d", count, i)
		}
	}
}

func TestInMemoryRepository_IncrementUnlock_Cap(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	a := testAnchor("a1", "user1")
	cap := 3
	a.MaxUnlock = &cap
	if err := repo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	for i := 0; i < cap; i++ {
		if _, err := repo.IncrementUnlock(ctx, "a1"); err != nil {
			t.Fatalf("IncrementUnlock() #%d error = %v", i+1, err)
		}
	}
	if _, err := repo.IncrementUnlock(ctx, "a1"); err != ErrUnlockCapReached {
		t.Errorf("IncrementUnlock() past cap error = %v, want ErrUnlockCapReached", err)
	}
}

// TestInMemoryRepository_IncrementUnlock_Concurrent verifies that concurrent
// unlockers never push the counter past max_unlock.
func TestInMemoryRepository_IncrementUnlock_Concurrent(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	a := testAnchor("a1", "user1")
	cap := 5
	a.MaxUnlock = &cap
	if err := repo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementUnlock(ctx, "a1"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != cap {
		t.Errorf("got %d successful unlocks, want exactly %d", successes, cap)
	}
	got, _ := repo.GetByID(ctx, "a1")
	if got.CurrentUnlock != cap {
		t.Errorf("current_unlock = %d, want %d", got.CurrentUnlock, cap)
	}
}

func TestInMemoryRepository_MarkExpired(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.Insert(ctx, testAnchor("a1", "user1")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := repo.MarkExpired(ctx, "a1"); err != nil {
		t.Fatalf("MarkExpired() error = %v", err)
	}
	got, _ := repo.GetByID(ctx, "a1")
	if got.Status != StatusExpired {
		t.Errorf("status = %s, want EXPIRED", got.Status)
	}

	if err := repo.MarkExpired(ctx, "missing"); err != ErrAnchorNotFound {
		t.Errorf("MarkExpired(missing) error = %v, want ErrAnchorNotFound", err)
	}
}
