package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/your-org/photoclaim/internal/config"
	"github.com/your-org/photoclaim/internal/models"
)

func testExtractor(t *testing.T, handler http.HandlerFunc) *HTTPExtractor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPExtractor(config.ExtractorConfig{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	})
}

func validFaceJSON() string {
	// 1024-d zero vector, abbreviated by the server to keep the test readable.
	buf := []byte(`{"faces":[{"embedding":[`)
	for i := 0; i < models.EmbeddingDim; i++ {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '0')
	}
	buf = append(buf, []byte(`],"bbox":[1,2,3,4],"confidence":0.99}]}`)...)
	return string(buf)
}

func TestExtractOK(t *testing.T) {
	e := testExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/extract" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(validFaceJSON()))
	})

	faces, err := e.Extract(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("got %d faces; want 1", len(faces))
	}
	if faces[0].BBox != [4]int{1, 2, 3, 4} {
		t.Errorf("bbox = %v; want [1 2 3 4]", faces[0].BBox)
	}
}

func TestExtractCorruptInput(t *testing.T) {
	e := testExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cannot decode image", http.StatusUnprocessableEntity)
	})

	_, err := e.Extract(context.Background(), []byte("not an image"))
	if !errors.Is(err, ErrCorruptImage) {
		t.Errorf("error = %v; want ErrCorruptImage", err)
	}
}

func TestExtractServiceDown(t *testing.T) {
	e := testExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := e.Extract(context.Background(), []byte("img"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v; want ErrUnavailable", err)
	}
}

func TestExtractBadDimension(t *testing.T) {
	e := testExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"faces":[{"embedding":[1,2,3],"bbox":[0,0,0,0]}]}`))
	})

	_, err := e.Extract(context.Background(), []byte("img"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v; want ErrUnavailable for wrong dimension", err)
	}
}

func TestExtractZeroFaces(t *testing.T) {
	e := testExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"faces":[]}`))
	})

	faces, err := e.Extract(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("got %d faces; want 0 (no faces is not an error)", len(faces))
	}
}
