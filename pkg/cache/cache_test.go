package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/lakebase/pkg/utils"
)

func TestMetadataCacheTTL(t *testing.T) {
	clock := utils.NewMockTimeProvider(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewMetadataCache(300*time.Second, clock)

	meta := &TableMeta{MetadataLocation: "memory://ns.t/metadata/v1.json"}
	c.Put("t1/default/users", meta)

	assert.Same(t, meta, c.Get("t1/default/users"))

	clock.Advance(299 * time.Second)
	assert.NotNil(t, c.Get("t1/default/users"))

	clock.Advance(2 * time.Second)
	assert.Nil(t, c.Get("t1/default/users"))
}

func TestMetadataCacheInvalidate(t *testing.T) {
	c := NewMetadataCache(time.Minute, nil)
	c.Put("k", &TableMeta{})
	c.Invalidate("k")
	assert.Nil(t, c.Get("k"))
}

func TestResultCacheReturnsCopies(t *testing.T) {
	c := NewResultCache(time.Minute, 10, nil)
	c.Put("k", []map[string]interface{}{{"name": "alice"}})

	first, ok := c.Get("k")
	require.True(t, ok)
	first[0]["name"] = "mutated"

	second, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "alice", second[0]["name"])
}

func TestResultCacheTTL(t *testing.T) {
	clock := utils.NewMockTimeProvider(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewResultCache(60*time.Second, 10, clock)

	c.Put("k", []map[string]interface{}{{"n": 1}})
	clock.Advance(61 * time.Second)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestResultCacheLRUEviction(t *testing.T) {
	c := NewResultCache(time.Minute, 2, nil)

	c.Put("a", nil)
	c.Put("b", nil)

	// 触碰 a，b 成为最久未用
	_, _ = c.Get("a")
	c.Put("c", nil)

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestResultCacheInvalidateTable(t *testing.T) {
	c := NewResultCache(time.Minute, 10, nil)
	c.Put("t1/default/users:abc", nil)
	c.Put("t1/default/users:def", nil)
	c.Put("t1/default/orders:abc", nil)

	c.InvalidateTable("t1/default/users")

	_, ok := c.Get("t1/default/users:abc")
	assert.False(t, ok)
	_, ok = c.Get("t1/default/orders:abc")
	assert.True(t, ok)
}

func TestRequestDigestStable(t *testing.T) {
	type req struct {
		Filters []string `json:"filters"`
		Limit   int      `json:"limit"`
	}

	d1, err := RequestDigest("t1", "default", "users", req{Filters: []string{"a"}, Limit: 10})
	require.NoError(t, err)
	d2, err := RequestDigest("t1", "default", "users", req{Filters: []string{"a"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	d3, err := RequestDigest("t1", "default", "users", req{Filters: []string{"a"}, Limit: 20})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)

	// 键以表前缀开头，表级失效依赖这一点
	assert.Contains(t, d1, "t1/default/users:")
}
