package model

import (
	"sort"

	"golang.org/x/text/cases"
)

// Household groups users sharing categories and a task history.
type Household struct {
	ID            int64           `json:"id"`
	ShareCode     string          `json:"share_code"`
	Users         []User          `json:"users"`
	Categories    []Category      `json:"categories"`
	Tasks         []Task          `json:"tasks"`
	OverallCounts map[int64]int64 `json:"overall_counts"`
}

// Standing is one row of the household fairness table.
type Standing struct {
	UserID int64
	Name   string
	Total  int64
}

func (h *Household) User(id int64) *User {
	for i := range h.Users {
		if h.Users[i].ID == id {
			return &h.Users[i]
		}
	}
	return nil
}

func (h *Household) Category(id int64) *Category {
	for i := range h.Categories {
		if h.Categories[i].ID == id {
			return &h.Categories[i]
		}
	}
	return nil
}

// CategoryByName matches names case-insensitively.
func (h *Household) CategoryByName(name string) *Category {
	key := foldName(name)
	for i := range h.Categories {
		if foldName(h.Categories[i].Name) == key {
			return &h.Categories[i]
		}
	}
	return nil
}

// AddUser appends a member and gives them zero counts everywhere.
func (h *Household) AddUser(u User) {
	h.Users = append(h.Users, u)
	if h.OverallCounts == nil {
		h.OverallCounts = make(map[int64]int64)
	}
	h.OverallCounts[u.ID] = 0
	for i := range h.Categories {
		if h.Categories[i].TaskCounts == nil {
			h.Categories[i].TaskCounts = make(map[int64]int64)
		}
		h.Categories[i].TaskCounts[u.ID] = 0
	}
}

// AddCategory appends a category with zero counts for every current user.
func (h *Household) AddCategory(c Category) *Category {
	c.TaskCounts = make(map[int64]int64, len(h.Users))
	for _, u := range h.Users {
		c.TaskCounts[u.ID] = 0
	}
	c.Weight = c.EffectiveWeight()
	h.Categories = append(h.Categories, c)
	return &h.Categories[len(h.Categories)-1]
}

// RecentTasks returns up to limit tasks, most recent first.
func (h *Household) RecentTasks(limit int) []Task {
	n := len(h.Tasks)
	if limit > n {
		limit = n
	}
	out := make([]Task, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, h.Tasks[i])
	}
	return out
}

// Standings orders users by weighted total, highest first; ties by id.
func (h *Household) Standings() []Standing {
	out := make([]Standing, 0, len(h.Users))
	for _, u := range h.Users {
		out = append(out, Standing{UserID: u.ID, Name: u.Name, Total: h.OverallCounts[u.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func foldName(s string) string {
	return cases.Fold().String(s)
}
