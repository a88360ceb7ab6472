package models

import "time"

// DefaultStatus is assigned to every new account.
const DefaultStatus = "I am new!"

// User represents an account that can author posts.
type User struct {
	ID           string    `json:"_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	Status       string    `json:"status"`
	Posts        []string  `json:"posts"` // Owned post ids, in creation order
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AddPost appends a post id to the owned set unless it is already present.
func (u *User) AddPost(postID string) {
	for _, id := range u.Posts {
		if id == postID {
			return
		}
	}
	u.Posts = append(u.Posts, postID)
}

// RemovePost drops a post id from the owned set, keeping the order of the rest.
func (u *User) RemovePost(postID string) {
	kept := u.Posts[:0]
	for _, id := range u.Posts {
		if id != postID {
			kept = append(kept, id)
		}
	}
	u.Posts = kept
}

// SignupInput is the payload for creating an account.
type SignupInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// AuthData is returned by a successful login.
type AuthData struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}
