package model

// Sequences hands out ids for every entity kind. Values are the next id to
// allocate; they only ever grow and are shared by all households.
type Sequences struct {
	NextHouseholdID int64 `json:"next_household_id"`
	NextUserID      int64 `json:"next_user_id"`
	NextCategoryID  int64 `json:"next_category_id"`
	NextTaskID      int64 `json:"next_task_id"`
}

func (s *Sequences) NextHousehold() int64 { return next(&s.NextHouseholdID) }
func (s *Sequences) NextUser() int64      { return next(&s.NextUserID) }
func (s *Sequences) NextCategory() int64  { return next(&s.NextCategoryID) }
func (s *Sequences) NextTask() int64      { return next(&s.NextTaskID) }

func next(seq *int64) int64 {
	if *seq < 1 {
		*seq = 1
	}
	id := *seq
	*seq++
	return id
}

// Document is the whole persisted application state.
type Document struct {
	Households []Household `json:"households"`
	Sequences
	// Revision counts saves of this document.
	Revision int64 `json:"revision,omitempty"`
}

// NewDocument returns the empty state used when no snapshot exists yet.
func NewDocument() *Document {
	return &Document{
		Households: []Household{},
		Sequences: Sequences{
			NextHouseholdID: 1,
			NextUserID:      1,
			NextCategoryID:  1,
			NextTaskID:      1,
		},
	}
}

func (d *Document) Household(id int64) *Household {
	for i := range d.Households {
		if d.Households[i].ID == id {
			return &d.Households[i]
		}
	}
	return nil
}

// HouseholdByShareCode matches codes case-insensitively.
func (d *Document) HouseholdByShareCode(code string) *Household {
	key := foldName(code)
	for i := range d.Households {
		if foldName(d.Households[i].ShareCode) == key {
			return &d.Households[i]
		}
	}
	return nil
}

// FindUser searches every household for the user.
func (d *Document) FindUser(id int64) (*Household, *User) {
	for i := range d.Households {
		if u := d.Households[i].User(id); u != nil {
			return &d.Households[i], u
		}
	}
	return nil, nil
}

// FindMembership returns the household holding both the user and the category.
func (d *Document) FindMembership(userID, categoryID int64) (*Household, *Category) {
	for i := range d.Households {
		h := &d.Households[i]
		if h.User(userID) == nil {
			continue
		}
		if c := h.Category(categoryID); c != nil {
			return h, c
		}
	}
	return nil, nil
}

// AddHousehold appends h and returns a pointer into the document.
func (d *Document) AddHousehold(h Household) *Household {
	d.Households = append(d.Households, h)
	return &d.Households[len(d.Households)-1]
}
