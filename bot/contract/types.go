package contract

// Friend is one directory entry. Fields are immutable once created; there
// is no update operation.
type Friend struct {
	ID                    string `json:"friend_id"`
	Name                  string `json:"name"`
	Profession            string `json:"profession"`
	ProfessionDescription string `json:"profession_description"`
	BlobKey               string `json:"blob_key"`
	PhotoURL              string `json:"photo_url"`
}

// FriendInput is the user-supplied part of a Friend, collected over
// successive dialogue turns before the photo arrives.
type FriendInput struct {
	Name                  string `json:"name"`
	Profession            string `json:"profession"`
	ProfessionDescription string `json:"profession_description"`
}
