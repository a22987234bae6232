package friends

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	contractx "github.com/ykravets/friendbook/bot/contract"
)

type memRecords struct {
	records map[string]contractx.Friend
	putErr  error
}

func newMemRecords() *memRecords {
	return &memRecords{records: make(map[string]contractx.Friend)}
}

func (m *memRecords) Put(_ context.Context, f contractx.Friend) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.records[f.ID] = f
	return nil
}

func (m *memRecords) Get(_ context.Context, id string) (contractx.Friend, error) {
	f, ok := m.records[id]
	if !ok {
		return contractx.Friend{}, fmt.Errorf("%w: %s", contractx.ErrNotFound, id)
	}
	return f, nil
}

func (m *memRecords) Scan(_ context.Context) ([]contractx.Friend, error) {
	out := make([]contractx.Friend, 0, len(m.records))
	for _, f := range m.records {
		out = append(out, f)
	}
	return out, nil
}

func (m *memRecords) Delete(_ context.Context, id string) error {
	delete(m.records, id)
	return nil
}

type memBlobs struct {
	objects   map[string][]byte
	putErr    error
	deleteErr error
	deletes   int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (m *memBlobs) KeyFor(friendID, filename string) string {
	return "friends/" + friendID + "/" + filename
}

func (m *memBlobs) URLFor(key string) string {
	return "https://blobs.test/photos/" + key
}

func (m *memBlobs) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	m.objects[key] = data
	return m.URLFor(key), nil
}

func (m *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", contractx.ErrNotFound, key)
	}
	return data, nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	m.deletes++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

func newService(t *testing.T, records *memRecords, blobs *memBlobs) *Service {
	t.Helper()
	svc, err := New(records, blobs)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

var input = contractx.FriendInput{
	Name:                  "Ada",
	Profession:            "Engineer",
	ProfessionDescription: "Builds things",
}

func TestCreateDerivesKeysConsistently(t *testing.T) {
	t.Parallel()

	records := newMemRecords()
	blobs := newMemBlobs()
	svc := newService(t, records, blobs)

	photo := []byte("jpeg-bytes")
	friend, err := svc.Create(context.Background(), input, "ada.jpg", photo, "image/jpeg")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if friend.ID == "" {
		t.Fatal("expected generated id")
	}
	if want := blobs.KeyFor(friend.ID, "ada.jpg"); friend.BlobKey != want {
		t.Fatalf("blob key = %q, want %q", friend.BlobKey, want)
	}
	if want := blobs.URLFor(friend.BlobKey); friend.PhotoURL != want {
		t.Fatalf("photo url = %q, want %q", friend.PhotoURL, want)
	}

	stored, err := blobs.Get(context.Background(), friend.BlobKey)
	if err != nil {
		t.Fatalf("blob Get() error = %v", err)
	}
	if !bytes.Equal(stored, photo) {
		t.Fatal("stored blob differs from upload")
	}
}

func TestCreateRecordWriteFailureSkipsBlob(t *testing.T) {
	t.Parallel()

	records := newMemRecords()
	records.putErr = fmt.Errorf("%w: insert failed", contractx.ErrStore)
	blobs := newMemBlobs()
	svc := newService(t, records, blobs)

	_, err := svc.Create(context.Background(), input, "ada.jpg", []byte("x"), "image/jpeg")
	if !errors.Is(err, contractx.ErrStore) {
		t.Fatalf("Create() error = %v, want ErrStore", err)
	}
	if len(blobs.objects) != 0 {
		t.Fatal("no blob write may be attempted after a failed record write")
	}
}

func TestCreateBlobFailureLeavesRecordObservable(t *testing.T) {
	t.Parallel()

	records := newMemRecords()
	blobs := newMemBlobs()
	blobs.putErr = fmt.Errorf("%w: upload failed", contractx.ErrStore)
	svc := newService(t, records, blobs)

	_, err := svc.Create(context.Background(), input, "ada.jpg", []byte("x"), "image/jpeg")
	if !errors.Is(err, contractx.ErrStore) {
		t.Fatalf("Create() error = %v, want ErrStore", err)
	}

	// The orphaned record stays readable; no auto-rollback.
	if len(records.records) != 1 {
		t.Fatalf("records = %d, want 1", len(records.records))
	}
	for id := range records.records {
		if _, err := svc.Get(context.Background(), id); err != nil {
			t.Fatalf("Get(%s) error = %v", id, err)
		}
	}
}

func TestCreatePhotoSizeBoundary(t *testing.T) {
	t.Parallel()

	records := newMemRecords()
	blobs := newMemBlobs()
	svc := newService(t, records, blobs)

	// Exactly at the cap: succeeds.
	atCap := make([]byte, MaxPhotoBytes)
	if _, err := svc.Create(context.Background(), input, "ok.jpg", atCap, "image/jpeg"); err != nil {
		t.Fatalf("Create(at cap) error = %v", err)
	}

	// One byte over: ValidationError and no new blob.
	blobsBefore := len(blobs.objects)
	over := make([]byte, MaxPhotoBytes+1)
	_, err := svc.Create(context.Background(), input, "big.jpg", over, "image/jpeg")
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Create(over cap) error = %v, want ErrValidation", err)
	}
	if len(blobs.objects) != blobsBefore {
		t.Fatal("oversized photo must not create a blob")
	}

	// The metadata record from the rejected create is left in place.
	if len(records.records) != 2 {
		t.Fatalf("records = %d, want 2", len(records.records))
	}
}

func TestDeleteIdempotence(t *testing.T) {
	t.Parallel()

	records := newMemRecords()
	blobs := newMemBlobs()
	svc := newService(t, records, blobs)

	friend, err := svc.Create(context.Background(), input, "ada.jpg", []byte("x"), "image/jpeg")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Delete(context.Background(), friend.ID); err != nil {
		t.Fatalf("first Delete() error = %v", err)
	}
	err = svc.Delete(context.Background(), friend.ID)
	if !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteAttemptsBlobEvenOnFailure(t *testing.T) {
	t.Parallel()

	records := newMemRecords()
	blobs := newMemBlobs()
	blobs.deleteErr = fmt.Errorf("%w: delete failed", contractx.ErrStore)
	svc := newService(t, records, blobs)

	friend, err := svc.Create(context.Background(), input, "ada.jpg", []byte("x"), "image/jpeg")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err = svc.Delete(context.Background(), friend.ID)
	if !errors.Is(err, contractx.ErrStore) {
		t.Fatalf("Delete() error = %v, want ErrStore", err)
	}
	if blobs.deletes != 1 {
		t.Fatalf("blob deletes = %d, want 1", blobs.deletes)
	}
	// Record delete already went through; the blob is the orphan now.
	if len(records.records) != 0 {
		t.Fatalf("records = %d, want 0", len(records.records))
	}
}

func TestDeleteUnknownIDIsNotFound(t *testing.T) {
	t.Parallel()

	svc := newService(t, newMemRecords(), newMemBlobs())

	err := svc.Delete(context.Background(), "missing")
	if !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("Delete() error = %v, want ErrNotFound", err)
	}
}
