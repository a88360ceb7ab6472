package websocket

// PostsEvent is the event name carried by every post mutation broadcast.
const PostsEvent = "posts"

// Post mutation actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Message defines the structure for websocket messages.
// Post holds a post snapshot for create/update and the post id for delete.
type Message struct {
	Event  string      `json:"event"`
	Action string      `json:"action"`
	Post   interface{} `json:"post"`
}

// NewPostMessage builds a posts event for the given action.
func NewPostMessage(action string, post interface{}) Message {
	return Message{Event: PostsEvent, Action: action, Post: post}
}
