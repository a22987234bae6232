package dialog

import (
	"errors"
	"fmt"
	"strings"

	contractx "github.com/ykravets/friendbook/bot/contract"
)

const (
	msgMenuHint       = "Please pick an action from the menu, or type /start."
	msgAskName        = "Adding a new friend. Enter the name:"
	msgAskProfession  = "Good. Now enter the profession:"
	msgAskDescription = "Great. Enter a short description of the profession:"
	msgAskPhoto       = "Last step: send the friend's photo (compressed or as a document):"
	msgPhotoOnly      = "Please send a photo or an image file."
	msgAskFriendID    = "Enter the FriendID:"
	msgAskQuestion    = "ID accepted. Now enter your question about the friend's profession:"
	msgInternalNoID   = "Internal error: no friend ID attached to this question. Please start over from the menu."
	msgNotFound       = "No friend with that ID was found."
	msgStoreFailure   = "Something went wrong talking to storage. Please try again from the menu."
	msgAnswerFailure  = "The answer service failed. Please try again from the menu."
	msgPhotoTooLarge  = "That photo is too large (8 MiB max). The friend was not fully saved; please start over."
	msgDeleted        = "The friend and their photo were deleted."
	msgDirectoryEmpty = "The directory has no friends yet."
)

func formatFriend(header string, f contractx.Friend) string {
	return fmt.Sprintf(
		"<b>%s</b>\n"+
			"<b>ID:</b> <code>%s</code>\n"+
			"<b>Name:</b> <code>%s</code>\n"+
			"<b>Profession:</b> <code>%s</code>\n"+
			"<b>Description:</b> <code>%s</code>\n"+
			"<b>Photo:</b> <a href=\"%s\">view</a>",
		header, f.ID, f.Name, f.Profession, f.ProfessionDescription, f.PhotoURL,
	)
}

func formatFriendList(friends []contractx.Friend) string {
	if len(friends) == 0 {
		return msgDirectoryEmpty
	}
	parts := make([]string, 0, len(friends))
	for i, f := range friends {
		parts = append(parts, formatFriend(fmt.Sprintf("Friend #%d", i+1), f))
	}
	return "<b>All friends:</b>\n\n" + strings.Join(parts, "\n\n")
}

// errorReply maps the error taxonomy to a user message. Every failure path
// stays user-visible.
func errorReply(err error) string {
	switch {
	case errors.Is(err, contractx.ErrNotFound):
		return msgNotFound
	case errors.Is(err, contractx.ErrValidation):
		return msgPhotoTooLarge
	case errors.Is(err, contractx.ErrDispatcher):
		return msgAnswerFailure
	default:
		return msgStoreFailure
	}
}
