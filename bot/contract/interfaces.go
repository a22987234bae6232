package contract

import "context"

// RecordStore is key-value persistence for friend records.
type RecordStore interface {
	// Put writes a full record. A failed Put must not leave a partial
	// record visible to later reads.
	Put(ctx context.Context, f Friend) error

	// Get returns the record for id, or an error wrapping ErrNotFound.
	Get(ctx context.Context, id string) (Friend, error)

	// Scan returns every record present at scan start, following any
	// store-side pagination. No ordering guarantee.
	Scan(ctx context.Context) ([]Friend, error)

	// Delete removes the record for id. Deleting an absent id succeeds.
	Delete(ctx context.Context, id string) error
}

// BlobStore is content storage for photo bytes, addressed by a derived key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object at key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error

	// KeyFor derives the object key for a friend's photo.
	KeyFor(friendID, filename string) string

	// URLFor derives the public locator for key. A record's PhotoURL must
	// always equal URLFor of its BlobKey.
	URLFor(key string) string
}

// Answerer answers a free-text question about a friend's profession.
type Answerer interface {
	Answer(ctx context.Context, question, profession, description string) (string, error)
}
