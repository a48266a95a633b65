package listings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleListings() []Listing {
	return []Listing{
		{PublicID: "lst-1", Title: "Go code review", Description: "I review backend services", Category: "engineering"},
		{PublicID: "lst-2", Title: "Prompt engineering coaching", Description: "LLM prompting basics", Category: "ai"},
		{PublicID: "lst-3", Title: "Logo design", Description: "Vector logos", Category: "design"},
	}
}

func TestFilter_MatchesTitleDescriptionCategory(t *testing.T) {
	items := sampleListings()

	byTitle := Filter(items, "code review")
	assert.Len(t, byTitle, 1)
	assert.Equal(t, "lst-1", byTitle[0].PublicID)

	byDescription := Filter(items, "prompting")
	assert.Len(t, byDescription, 1)
	assert.Equal(t, "lst-2", byDescription[0].PublicID)

	byCategory := Filter(items, "design")
	assert.Len(t, byCategory, 1)
	assert.Equal(t, "lst-3", byCategory[0].PublicID)
}

func TestFilter_CaseInsensitive(t *testing.T) {
	items := sampleListings()
	assert.Equal(t, Filter(items, "LOGO"), Filter(items, "logo"))
}

func TestFilter_EmptyQueryReturnsAll(t *testing.T) {
	items := sampleListings()
	assert.Equal(t, items, Filter(items, ""))
	assert.Equal(t, items, Filter(items, "   "))
}

func TestFilter_Idempotent(t *testing.T) {
	items := sampleListings()
	for _, q := range []string{"", "review", "ai", "zzz-no-match"} {
		once := Filter(items, q)
		twice := Filter(once, q)
		assert.Equal(t, once, twice, "query %q", q)
	}
}

func TestFilter_NoMatchYieldsEmptySlice(t *testing.T) {
	out := Filter(sampleListings(), "blockchain")
	assert.Empty(t, out)
	assert.NotNil(t, out)
}
