package dialog

// Event is one inbound chat interaction. The machine handles exactly three
// kinds: free text, a binary attachment, and a menu selection.
type Event interface {
	Chat() int64
}

// Text is a plain text message.
type Text struct {
	ChatID  int64
	Content string
}

func (t Text) Chat() int64 { return t.ChatID }

// Attachment is a photo or document upload. IsImage is true for
// platform-native photos and for documents with an image content type.
type Attachment struct {
	ChatID      int64
	Filename    string
	ContentType string
	Data        []byte
	IsImage     bool
}

func (a Attachment) Chat() int64 { return a.ChatID }

// Menu is a main-menu selection.
type Menu struct {
	ChatID int64
	Tag    string
}

func (m Menu) Chat() int64 { return m.ChatID }

// Menu tags.
const (
	MenuCreate = "add_friend"
	MenuList   = "show_all_friends"
	MenuLookup = "get_friend_by_id"
	MenuDelete = "delete_friend"
	MenuAsk    = "ask_ai"
)
