package article

// Collection holds the queue and the saved library. An article keeps its id
// in both lists so that updates reach every copy. Collection is not safe
// for concurrent use.
type Collection struct {
	Queue   []Article
	Library []Article
}

// List names one of the two lists.
type List string

const (
	ListQueue   List = "queue"
	ListLibrary List = "library"
)

// Items returns the articles of list.
func (c *Collection) Items(list List) []Article {
	if list == ListLibrary {
		return c.Library
	}
	return c.Queue
}

// Find returns the article with id, looking in the queue first.
func (c *Collection) Find(id string) (Article, bool) {
	if i := indexOf(c.Queue, id); i >= 0 {
		return c.Queue[i], true
	}
	if i := indexOf(c.Library, id); i >= 0 {
		return c.Library[i], true
	}
	return Article{}, false
}

// Update replaces the article with a.ID in every list that holds it. It
// reports whether any copy was replaced.
func (c *Collection) Update(a Article) bool {
	found := false
	for _, list := range []*[]Article{&c.Queue, &c.Library} {
		for i := range *list {
			if (*list)[i].ID == a.ID {
				(*list)[i] = a.Clone()
				found = true
			}
		}
	}
	return found
}

// Enqueue appends a to the queue unless an article with its id is queued.
func (c *Collection) Enqueue(a Article) bool {
	if indexOf(c.Queue, a.ID) >= 0 {
		return false
	}
	c.Queue = append(c.Queue, a.Clone())
	return true
}

// Dequeue removes the article with id from the queue.
func (c *Collection) Dequeue(id string) bool {
	i := indexOf(c.Queue, id)
	if i < 0 {
		return false
	}
	c.Queue = append(c.Queue[:i:i], c.Queue[i+1:]...)
	return true
}

// Saved reports whether a is in the library, matching by id or by a shared
// non-empty URL.
func (c *Collection) Saved(a Article) bool {
	return c.libraryIndex(a) >= 0
}

// Save adds a to the library unless it is already saved.
func (c *Collection) Save(a Article) bool {
	if c.Saved(a) {
		return false
	}
	c.Library = append([]Article{a.Clone()}, c.Library...)
	return true
}

// Unsave removes a from the library, matching as Saved does.
func (c *Collection) Unsave(a Article) bool {
	i := c.libraryIndex(a)
	if i < 0 {
		return false
	}
	c.Library = append(c.Library[:i:i], c.Library[i+1:]...)
	return true
}

// ToggleSaved saves a or removes it from the library and reports whether it
// is saved afterwards.
func (c *Collection) ToggleSaved(a Article) bool {
	if c.Unsave(a) {
		return false
	}
	c.Save(a)
	return true
}

// SetQueueOrder reorders the queue to follow ids. Articles missing from ids
// keep their relative order at the end.
func (c *Collection) SetQueueOrder(ids []string) {
	out := make([]Article, 0, len(c.Queue))
	used := make(map[string]bool, len(ids))
	for _, id := range ids {
		if i := indexOf(c.Queue, id); i >= 0 && !used[id] {
			out = append(out, c.Queue[i])
			used[id] = true
		}
	}
	for _, a := range c.Queue {
		if !used[a.ID] {
			out = append(out, a)
		}
	}
	c.Queue = out
}

// IDs returns the ids of list in order.
func (c *Collection) IDs(list List) []string {
	items := c.Items(list)
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.ID
	}
	return out
}

func (c *Collection) libraryIndex(a Article) int {
	for i, s := range c.Library {
		if s.ID == a.ID || (a.URL != "" && s.URL == a.URL) {
			return i
		}
	}
	return -1
}

func indexOf(items []Article, id string) int {
	for i, a := range items {
		if a.ID == id {
			return i
		}
	}
	return -1
}
