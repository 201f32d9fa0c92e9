package db

import (
	"testing"

	"tallyhub-server/src/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestCache(t *testing.T) {
	t.Helper()
	require.NoError(t, InitCache())
	t.Cleanup(func() { Cache.Close(); Cache = nil })
}

func TestRuleCache(t *testing.T) {
	initTestCache(t)

	a, b := uuid.New(), uuid.New()
	rules := []models.TransactionRule{{UserID: a, Keyword: "ALDI", Category: models.CategoryGrocery}}

	assert.True(t, SetRuleCache(a, RuleCacheVersion(a), rules))
	assert.True(t, SetRuleCache(b, RuleCacheVersion(b), nil))
	Cache.Wait()

	got, ok := GetRuleCache(a)
	require.True(t, ok)
	assert.Equal(t, rules, got)

	ttl, ok := Cache.GetTTL(RuleCacheKey(a))
	require.True(t, ok)
	assert.LessOrEqual(t, ttl, RuleCacheTTL)
	assert.Greater(t, ttl, RuleCacheTTL/2)

	DelRuleCache(a)
	Cache.Wait()
	_, ok = GetRuleCache(a)
	assert.False(t, ok)
	_, ok = GetRuleCache(b)
	assert.True(t, ok)
}

func TestRuleCache_ReadBeforeWriteIsNotCached(t *testing.T) {
	initTestCache(t)
	user := uuid.New()
	stale := []models.TransactionRule{{UserID: user, Keyword: "ALDI", Category: models.CategoryGrocery}}

	// a list loaded before a rule write finishes must not be cached after it
	version := RuleCacheVersion(user)
	DelRuleCache(user)
	assert.False(t, SetRuleCache(user, version, stale))
	Cache.Wait()

	_, ok := GetRuleCache(user)
	assert.False(t, ok)

	assert.True(t, SetRuleCache(user, RuleCacheVersion(user), stale))
	Cache.Wait()
	_, ok = GetRuleCache(user)
	assert.True(t, ok)
}

func TestRuleCache_Uninitialized(t *testing.T) {
	Cache = nil
	user := uuid.New()
	assert.False(t, SetRuleCache(user, RuleCacheVersion(user), nil))
	DelRuleCache(user)
	_, ok := GetRuleCache(user)
	assert.False(t, ok)
}
