package model

// Category groups logged tasks and carries the weight applied to a user's
// overall count for each task logged under it.
type Category struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Weight     int64           `json:"weight"`
	TaskCounts map[int64]int64 `json:"task_counts"`
}

// EffectiveWeight returns the weight with the "unset means 1" rule applied.
func (c *Category) EffectiveWeight() int64 {
	if c.Weight < 1 {
		return 1
	}
	return c.Weight
}

// Clone returns a copy that does not share the counts map.
func (c Category) Clone() Category {
	counts := make(map[int64]int64, len(c.TaskCounts))
	for k, v := range c.TaskCounts {
		counts[k] = v
	}
	c.TaskCounts = counts
	return c
}
