package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-test/deep"

	"github.com/FocuswithJustin/expander/core/books"
	"github.com/FocuswithJustin/expander/core/errors"
	"github.com/FocuswithJustin/expander/core/ref"
)

func TestLRUCache_BasicOperations(t *testing.T) {
	cache := NewLRUCache[string, int](Config{MaxSize: 3})

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3)

	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if v, ok := cache.Get("c"); !ok || v != 3 {
		t.Errorf("Get(c) = %d, %v; want 3, true", v, ok)
	}
	if _, ok := cache.Get("d"); ok {
		t.Error("Get(d) should return false")
	}
	if n := cache.Len(); n != 3 {
		t.Errorf("Len() = %d; want 3", n)
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	var evicted []string
	cache := NewLRUCache[string, int](Config{
		MaxSize: 2,
		OnEvict: func(key, value any) { evicted = append(evicted, key.(string)) },
	})

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3) // evicts "a"

	if _, ok := cache.Get("a"); ok {
		t.Error("Get(a) should return false after eviction")
	}

	cache.Get("b")    // "c" is now least recently used
	cache.Put("d", 4) // evicts "c"

	if _, ok := cache.Get("c"); ok {
		t.Error("Get(c) should return false after eviction")
	}
	if v, ok := cache.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = %d, %v; want 2, true", v, ok)
	}
	if len(evicted) != 2 || evicted[0] != "a" || evicted[1] != "c" {
		t.Errorf("evicted = %v; want [a c]", evicted)
	}
	if s := cache.Stats(); s.Evictions != 2 || s.MaxSize != 2 || s.Size != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestLRUCache_UpdateAndRemove(t *testing.T) {
	cache := NewLRUCache[string, int](Config{MaxSize: 2})

	cache.Put("a", 1)
	cache.Put("a", 2)
	if v, ok := cache.Get("a"); !ok || v != 2 {
		t.Errorf("Get(a) = %d, %v; want 2, true", v, ok)
	}
	if n := cache.Len(); n != 1 {
		t.Errorf("Len() = %d; want 1", n)
	}

	cache.Remove("a")
	cache.Remove("missing")
	if _, ok := cache.Get("a"); ok {
		t.Error("Get(a) should return false after Remove")
	}

	cache.Put("b", 1)
	cache.Clear()
	if n := cache.Len(); n != 0 {
		t.Errorf("Len() after Clear = %d; want 0", n)
	}
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := newLRU[string, int](Config{TTL: time.Minute}, func() time.Time { return now })

	cache.Put("a", 1)
	if _, ok := cache.Get("a"); !ok {
		t.Fatal("Get(a) should hit before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := cache.Get("a"); ok {
		t.Error("Get(a) should miss after expiry")
	}
	if n := cache.Len(); n != 0 {
		t.Errorf("expired entry should be dropped, Len() = %d", n)
	}

	s := cache.Stats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("Stats() = %+v; want 1 hit, 1 miss", s)
	}
}

func TestLRUCache_NegativeMaxSize(t *testing.T) {
	cache := NewLRUCache[int, int](Config{MaxSize: -5})
	for i := 0; i < 100; i++ {
		cache.Put(i, i)
	}
	if n := cache.Len(); n != 100 {
		t.Errorf("Len() = %d; want unlimited cache to hold 100", n)
	}
}

func TestLRUCache_Concurrent(t *testing.T) {
	cache := NewLRUCache[string, int](Config{MaxSize: 50})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%75)
				cache.Put(key, i)
				cache.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if n := cache.Len(); n > 50 {
		t.Errorf("Len() = %d; should never exceed MaxSize", n)
	}
}

func TestReferenceCache(t *testing.T) {
	registry, err := books.Default()
	if err != nil {
		t.Fatal(err)
	}
	parser := ref.NewParser(registry)

	calls := 0
	parse := func(input string) (ref.Reference, error) {
		calls++
		return parser.Parse(input)
	}

	c := NewReferenceCache(DefaultConfig())

	for i := 0; i < 3; i++ {
		r, err := c.Resolve("1 Nephi 3:4", parse)
		if err != nil {
			t.Fatalf("Resolve() failed: %v", err)
		}
		if r.Book != "1-ne" {
			t.Errorf("Book = %q, want 1-ne", r.Book)
		}
	}
	if calls != 1 {
		t.Errorf("parse called %d times, want 1", calls)
	}

	for i := 0; i < 2; i++ {
		if _, err := c.Resolve("Unknown 1:1", parse); !errors.Is(err, errors.ErrInvalidReference) {
			t.Errorf("Resolve(Unknown) error = %v, want ErrInvalidReference", err)
		}
	}
	if calls != 2 {
		t.Errorf("failed resolutions should be cached, parse called %d times", calls)
	}

	if res, ok := c.Get("1 Nephi 3:4"); !ok || res.Err != nil {
		t.Errorf("Get() = %+v, %v", res, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if s := c.Stats(); s.Hits != 4 || s.Misses != 2 {
		t.Errorf("Stats() = %+v; want 4 hits, 2 misses", s)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestReferenceCache_ReturnsCopies(t *testing.T) {
	c := NewReferenceCache(DefaultConfig())
	parse := func(string) (ref.Reference, error) {
		return ref.Reference{Book: "alma", Series: books.BookOfMormon,
			Chapter: &ref.Chapter{Number: "32", Verse: "21"}}, nil
	}

	first, _ := c.Resolve("Alma 32:21", parse)
	first.Chapter.Verse = "99"
	first.Chapter.Number = "1"

	second, _ := c.Resolve("Alma 32:21", parse)
	second.Chapter.Verse = "42"

	res, _ := c.Get("Alma 32:21")
	res.Reference.Chapter.Number = "7"

	third, _ := c.Resolve("Alma 32:21", parse)
	want := ref.Reference{Book: "alma", Series: books.BookOfMormon,
		Chapter: &ref.Chapter{Number: "32", Verse: "21"}}
	if diff := deep.Equal(third, want); diff != nil {
		t.Errorf("cached reference was modified through a returned value: %v", diff)
	}
}

func TestReferenceCache_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &ReferenceCache{cache: newLRU[string, Resolution](Config{TTL: time.Minute}, func() time.Time { return now })}

	calls := 0
	parse := func(input string) (ref.Reference, error) {
		calls++
		return ref.Reference{Book: "enos"}, nil
	}

	c.Resolve("Enos", parse)
	now = now.Add(30 * time.Second)
	c.Resolve("Enos", parse)
	if calls != 1 {
		t.Fatalf("parse called %d times within the TTL, want 1", calls)
	}

	now = now.Add(time.Minute)
	c.Resolve("Enos", parse)
	if calls != 2 {
		t.Errorf("parse called %d times after expiry, want 2", calls)
	}
}
