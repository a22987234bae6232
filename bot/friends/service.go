// Package friends composes the record store and the blob store into
// create/delete operations that look atomic to the user. Neither store
// offers a cross-store transaction, so partial failures deliberately leave
// the inconsistency in place and surface the error instead of rolling back.
package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/ykravets/friendbook/bot/contract"
)

// MaxPhotoBytes caps an uploaded photo.
const MaxPhotoBytes = 8 << 20

type Service struct {
	records contractx.RecordStore
	blobs   contractx.BlobStore
}

func New(records contractx.RecordStore, blobs contractx.BlobStore) (*Service, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	return &Service{records: records, blobs: blobs}, nil
}

// Create writes the metadata record first, then uploads the photo. The id
// and the derived keys must exist before the blob can be named, so the
// record goes in before the upload. A failed or rejected upload leaves the
// record orphaned without a blob; Get still returns it.
func (s *Service) Create(ctx context.Context, input contractx.FriendInput, filename string, photo []byte, contentType string) (contractx.Friend, error) {
	id := uuid.NewString()
	key := s.blobs.KeyFor(id, filename)

	friend := contractx.Friend{
		ID:                    id,
		Name:                  input.Name,
		Profession:            input.Profession,
		ProfessionDescription: input.ProfessionDescription,
		BlobKey:               key,
		PhotoURL:              s.blobs.URLFor(key),
	}

	if err := s.records.Put(ctx, friend); err != nil {
		return contractx.Friend{}, err
	}

	if len(photo) > MaxPhotoBytes {
		log.Warn().Str("friend_id", id).Int("size", len(photo)).
			Msg("photo over size cap, record left without blob")
		return contractx.Friend{}, fmt.Errorf("%w: photo exceeds %d bytes", contractx.ErrValidation, MaxPhotoBytes)
	}

	if _, err := s.blobs.Put(ctx, key, photo, contentType); err != nil {
		log.Error().Err(err).Str("friend_id", id).Str("blob_key", key).
			Msg("blob upload failed, record left without blob")
		return contractx.Friend{}, err
	}

	return friend, nil
}

// Delete removes the record and its blob. Both deletes are attempted even
// if one fails; the caller sees a single overall result. A failed blob
// delete after a successful record delete leaves an orphaned blob.
func (s *Service) Delete(ctx context.Context, id string) error {
	friend, err := s.records.Get(ctx, id)
	if err != nil {
		return err
	}

	recErr := s.records.Delete(ctx, id)
	blobErr := s.blobs.Delete(ctx, friend.BlobKey)

	if recErr != nil {
		return recErr
	}
	if blobErr != nil {
		log.Error().Err(blobErr).Str("friend_id", id).Str("blob_key", friend.BlobKey).
			Msg("blob delete failed, blob left orphaned")
		return blobErr
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (contractx.Friend, error) {
	return s.records.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]contractx.Friend, error) {
	return s.records.Scan(ctx)
}
