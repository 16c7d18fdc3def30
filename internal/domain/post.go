package domain

import "time"

// Creator is the minimal projection of the user owning a post.
type Creator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Post represents a user-authored content record with an attached image.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl"`
	Creator   Creator   `json:"creator"`
	CreatedAt time.Time `json:"createdAt"`
}

// FeedPage is one page of the post feed plus the overall total.
type FeedPage struct {
	Posts      []Post `json:"posts"`
	TotalItems int    `json:"totalItems"`
}
