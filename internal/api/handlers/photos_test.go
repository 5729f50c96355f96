package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photoclaim/internal/models"
	"github.com/your-org/photoclaim/internal/storage"
	"github.com/your-org/photoclaim/pkg/dto"
)

type fakePhotoStore struct {
	photos    []models.Photo
	gotFilter storage.PhotoFilter
}

func (f *fakePhotoStore) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	f.photos = append(f.photos, *photo)
	return nil
}

func (f *fakePhotoStore) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	for i := range f.photos {
		if f.photos[i].ID == id {
			return &f.photos[i], nil
		}
	}
	return nil, nil
}

func (f *fakePhotoStore) SetPhotoHidden(ctx context.Context, id uuid.UUID, hidden bool) error {
	return nil
}

func (f *fakePhotoStore) ListPhotos(ctx context.Context, fl storage.PhotoFilter) ([]models.Photo, error) {
	f.gotFilter = fl
	if fl.Cursor != nil {
		found := false
		for i := range f.photos {
			if f.photos[i].ID == *fl.Cursor {
				found = true
				break
			}
		}
		if !found {
			return nil, storage.ErrInvalidCursor
		}
	}
	if len(f.photos) > fl.Limit {
		return f.photos[:fl.Limit], nil
	}
	return f.photos, nil
}

func feedRequest(store *fakePhotoStore, query string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewPhotoHandler(store, nil, nil, time.Hour)
	router.GET("/v1/photos", h.Feed)

	req := httptest.NewRequest(http.MethodGet, "/v1/photos"+query, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestFeedReturnsPhotos(t *testing.T) {
	store := &fakePhotoStore{photos: []models.Photo{
		{ID: uuid.New(), UploaderID: "u1", Status: models.PhotoStatusReady},
		{ID: uuid.New(), UploaderID: "u2", Status: models.PhotoStatusReady},
	}}

	w := feedRequest(store, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	var resp dto.PhotoFeedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Photos) != 2 {
		t.Errorf("got %d photos; want 2", len(resp.Photos))
	}
	if resp.NextCursor != "" {
		t.Errorf("next_cursor = %q; want empty on a short page", resp.NextCursor)
	}
}

func TestFeedUnknownCursorRejected(t *testing.T) {
	store := &fakePhotoStore{photos: []models.Photo{
		{ID: uuid.New(), Status: models.PhotoStatusReady},
	}}

	w := feedRequest(store, "?cursor="+uuid.NewString())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400 for a cursor naming no photo", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["error"] != "unknown cursor" {
		t.Errorf("error = %q; want %q", resp["error"], "unknown cursor")
	}
}

func TestFeedMalformedCursorRejected(t *testing.T) {
	w := feedRequest(&fakePhotoStore{}, "?cursor=not-a-uuid")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestFeedInvalidStatusRejected(t *testing.T) {
	w := feedRequest(&fakePhotoStore{}, "?status=deleted")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}
