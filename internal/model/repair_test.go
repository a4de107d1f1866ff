package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentStartsSequencesAtOne(t *testing.T) {
	doc := NewDocument()
	assert.Empty(t, doc.Households)
	assert.Equal(t, int64(1), doc.NextHousehold())
	assert.Equal(t, int64(1), doc.NextUser())
	assert.Equal(t, int64(1), doc.NextCategory())
	assert.Equal(t, int64(1), doc.NextTask())
	assert.Equal(t, int64(2), doc.NextUser())
}

func TestRepairBackfillsMissingCounts(t *testing.T) {
	// A category created before user 2 joined, and no overall entry for 2.
	raw := `{
		"households": [{
			"id": 1,
			"share_code": "ABCDEF",
			"users": [{"id": 1, "name": "Ann"}, {"id": 2, "name": "Bob"}],
			"categories": [{"id": 1, "name": "Dishes", "task_counts": {"1": 3}}],
			"tasks": [],
			"overall_counts": {"1": 3}
		}],
		"next_household_id": 2,
		"next_user_id": 3,
		"next_category_id": 2,
		"next_task_id": 1
	}`
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	doc.Repair()

	h := doc.Household(1)
	require.NotNil(t, h)
	assert.Equal(t, map[int64]int64{1: 3, 2: 0}, h.OverallCounts)
	c := h.Category(1)
	require.NotNil(t, c)
	assert.Equal(t, map[int64]int64{1: 3, 2: 0}, c.TaskCounts)
	assert.Equal(t, int64(1), c.Weight)
}

func TestRepairInitializesNilCollections(t *testing.T) {
	doc := &Document{Households: []Household{{ID: 4, Users: []User{{ID: 9, Name: "Cy"}}}}}
	doc.Repair()

	h := doc.Household(4)
	require.NotNil(t, h)
	assert.NotNil(t, h.Categories)
	assert.NotNil(t, h.Tasks)
	assert.Equal(t, map[int64]int64{9: 0}, h.OverallCounts)
}

func TestRepairCoercesWeight(t *testing.T) {
	doc := &Document{Households: []Household{{
		ID:         1,
		Categories: []Category{{ID: 1, Name: "a", Weight: 0}, {ID: 2, Name: "b", Weight: -3}, {ID: 3, Name: "c", Weight: 5}},
	}}}
	doc.Repair()

	h := doc.Household(1)
	assert.Equal(t, int64(1), h.Category(1).Weight)
	assert.Equal(t, int64(1), h.Category(2).Weight)
	assert.Equal(t, int64(5), h.Category(3).Weight)
}

func TestRepairLiftsLaggingSequences(t *testing.T) {
	doc := &Document{Households: []Household{{
		ID:         3,
		Users:      []User{{ID: 7}},
		Categories: []Category{{ID: 5}},
		Tasks:      []Task{{ID: 11}},
	}}}
	doc.Repair()

	assert.Equal(t, int64(4), doc.NextHouseholdID)
	assert.Equal(t, int64(8), doc.NextUserID)
	assert.Equal(t, int64(6), doc.NextCategoryID)
	assert.Equal(t, int64(12), doc.NextTaskID)
}

func TestRepairIsIdempotent(t *testing.T) {
	doc := &Document{Households: []Household{{
		ID:            1,
		Users:         []User{{ID: 1}, {ID: 2}},
		Categories:    []Category{{ID: 1, TaskCounts: map[int64]int64{1: 2}}},
		OverallCounts: map[int64]int64{1: 4},
	}}}
	doc.Repair()
	first, err := json.Marshal(doc)
	require.NoError(t, err)
	doc.Repair()
	second, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}
