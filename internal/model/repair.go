package model

// Repair restores the count and weight invariants after a load. Snapshots
// written by older builds may lack counts for users added after a category
// (or the other way round), may omit weights, and may carry sequences that
// lag the ids in use. Repair is idempotent.
func (d *Document) Repair() {
	if d.Households == nil {
		d.Households = []Household{}
	}
	var maxHousehold, maxUser, maxCategory, maxTask int64
	for i := range d.Households {
		h := &d.Households[i]
		maxHousehold = max(maxHousehold, h.ID)
		h.repair()
		for _, u := range h.Users {
			maxUser = max(maxUser, u.ID)
		}
		for _, c := range h.Categories {
			maxCategory = max(maxCategory, c.ID)
		}
		for _, t := range h.Tasks {
			maxTask = max(maxTask, t.ID)
		}
	}
	d.NextHouseholdID = max(d.NextHouseholdID, maxHousehold+1)
	d.NextUserID = max(d.NextUserID, maxUser+1)
	d.NextCategoryID = max(d.NextCategoryID, maxCategory+1)
	d.NextTaskID = max(d.NextTaskID, maxTask+1)
}

func (h *Household) repair() {
	if h.Users == nil {
		h.Users = []User{}
	}
	if h.Categories == nil {
		h.Categories = []Category{}
	}
	if h.Tasks == nil {
		h.Tasks = []Task{}
	}
	if h.OverallCounts == nil {
		h.OverallCounts = make(map[int64]int64, len(h.Users))
	}
	for _, u := range h.Users {
		if _, ok := h.OverallCounts[u.ID]; !ok {
			h.OverallCounts[u.ID] = 0
		}
	}
	for i := range h.Categories {
		c := &h.Categories[i]
		c.Weight = c.EffectiveWeight()
		if c.TaskCounts == nil {
			c.TaskCounts = make(map[int64]int64, len(h.Users))
		}
		for _, u := range h.Users {
			if _, ok := c.TaskCounts[u.ID]; !ok {
				c.TaskCounts[u.ID] = 0
			}
		}
	}
}
