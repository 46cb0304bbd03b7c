package message

import "time"

// Principal is the opaque identity of an authenticated caller.
type Principal string

// Message is a single post on the board. Replies point back to their parent
// through ParentID and are listed on the parent in insertion order.
type Message struct {
	ID        uint64     `json:"id"`
	Author    Principal  `json:"author"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Likes     uint64     `json:"likes"`
	Replies   []uint64   `json:"replies"`
	ParentID  *uint64    `json:"parentId,omitempty"`
}

// IsTopLevel reports whether the message appears in paginated listings.
func (m Message) IsTopLevel() bool {
	return m.ParentID == nil
}

// Clone returns a deep copy so callers never share slices or pointers with the store.
func (m Message) Clone() Message {
	out := m
	out.Replies = append(make([]uint64, 0, len(m.Replies)), m.Replies...)
	if m.UpdatedAt != nil {
		t := *m.UpdatedAt
		out.UpdatedAt = &t
	}
	if m.ParentID != nil {
		p := *m.ParentID
		out.ParentID = &p
	}
	return out
}

// Sort orders accepted by listings.
const (
	SortNewest  = "newest"
	SortOldest  = "oldest"
	SortPopular = "popular"
)

// PageRequest selects a page of top-level messages.
type PageRequest struct {
	Page   uint32 `json:"page"`
	Limit  uint32 `json:"limit"`
	SortBy string `json:"sortBy,omitempty"`
}

// Page is one page of top-level messages plus paging metadata.
type Page struct {
	Messages    []Message `json:"messages"`
	Total       uint64    `json:"total"`
	Page        uint32    `json:"page"`
	TotalPages  uint32    `json:"totalPages"`
	HasNext     bool      `json:"hasNext"`
	HasPrevious bool      `json:"hasPrevious"`
}

// Stats aggregates board activity.
type Stats struct {
	TotalMessages uint64 `json:"totalMessages"`
	TotalAuthors  uint64 `json:"totalAuthors"`
	MessagesToday uint64 `json:"messagesToday"`
}
