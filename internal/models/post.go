package models

import "time"

// Creator is the public view of a post's author.
type Creator struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Post represents a single feed entry.
type Post struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl"`
	Creator   Creator   `json:"creator"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostInput carries the mutable fields of a post.
type PostInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl"`
}

// PostPage is one page of the feed plus the total number of posts.
type PostPage struct {
	Posts      []Post `json:"posts"`
	TotalItems int    `json:"totalItems"`
}
