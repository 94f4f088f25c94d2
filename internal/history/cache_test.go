package history

import "testing"

// go test -v --run TestCacheBounded
func TestCacheBounded(t *testing.T) {
	cache, err := NewBucketCache(2)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	cache.Add("a", []Trade{{Price: 1}})
	cache.Add("b", []Trade{{Price: 2}})
	cache.Add("c", []Trade{{Price: 3}})

	if cache.Len() != 2 {
		t.Errorf("len = %d, want 2", cache.Len())
	}
	if _, ok := cache.Get("a"); ok {
		t.Error("oldest entry was not evicted")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("newest entry missing")
	}
}

// go test -v --run TestCacheReplaceOnlyResident
func TestCacheReplaceOnlyResident(t *testing.T) {
	cache, err := NewBucketCache(4)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	if cache.Replace("missing", []Trade{{Price: 1}}) {
		t.Error("Replace created an entry for a non-resident key")
	}
	if _, ok := cache.Get("missing"); ok {
		t.Error("non-resident key appeared after Replace")
	}

	cache.Add("day", []Trade{{Price: 1}})
	if !cache.Replace("day", []Trade{{Price: 1}, {Price: 2}}) {
		t.Error("Replace failed for a resident key")
	}
	got, ok := cache.Get("day")
	if !ok || len(got) != 2 {
		t.Errorf("got %d trades, want 2", len(got))
	}
}
