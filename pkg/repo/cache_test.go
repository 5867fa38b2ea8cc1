package repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheKey(t *testing.T) {
	t.Run("SameInput_ReturnsSameHash", func(t *testing.T) {
		hash1 := CacheKey("test", 123, true)
		hash2 := CacheKey("test", 123, true)
		assert.Equal(t, hash1, hash2)
	})

	t.Run("DifferentInput_ReturnsDifferentHash", func(t *testing.T) {
		hash1 := CacheKey("test", 123, true)
		hash2 := CacheKey("test", 123, false)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("OrderMatters", func(t *testing.T) {
		hash1 := CacheKey("a", "b", "c")
		hash2 := CacheKey("c", "b", "a")
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("TimeType", func(t *testing.T) {
		now := time.Now()
		hash1 := CacheKey(now)
		hash2 := CacheKey(now)
		assert.Equal(t, hash1, hash2)

		later := now.Add(time.Hour)
		hash3 := CacheKey(later)
		assert.NotEqual(t, hash1, hash3)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		assert.NotEmpty(t, CacheKey())
	})
}

func TestStableCacheKey(t *testing.T) {
	t.Run("KeyOrderIndependent", func(t *testing.T) {
		a := StableCacheKey("logs", map[string]any{
			"projects": []string{"p1", "p2"},
			"levels":   []string{"error"},
			"q":        "boom",
		})
		b := StableCacheKey("logs", map[string]any{
			"q":        "boom",
			"levels":   []string{"error"},
			"projects": []string{"p1", "p2"},
		})
		assert.Equal(t, a, b, "map construction order must not affect the cache key")
	})

	t.Run("DifferentValuesDifferentKey", func(t *testing.T) {
		a := StableCacheKey("logs", map[string]any{"q": "boom"})
		b := StableCacheKey("logs", map[string]any{"q": "bang"})
		assert.NotEqual(t, a, b)
	})

	t.Run("PrefixIsNamespaced", func(t *testing.T) {
		a := StableCacheKey("logs", map[string]any{"q": "boom"})
		b := StableCacheKey("stats", map[string]any{"q": "boom"})
		assert.NotEqual(t, a, b)
	})
}
