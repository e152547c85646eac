package sd

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"comicinsights/pkg/diffusion"
	"comicinsights/pkg/schema"
)

func testServer(t *testing.T, status int, images []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(schema.Txt2ImgResponse{Images: images})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestQueue_ProcessesItems(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("png bytes"))
	srv := testServer(t, http.StatusOK, []string{encoded})

	q := New(diffusion.NewClient(srv.URL))
	q.Start()
	defer q.Stop()

	respCh, errCh, err := q.Add(schema.DefaultTxt2ImgRequest())
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	select {
	case images := <-respCh:
		if len(images) != 1 || string(images[0]) != "png bytes" {
			t.Errorf("unexpected images: %v", images)
		}
	case err, ok := <-errCh:
		if ok {
			t.Fatalf("generation failed: %v", err)
		}
		// Error channel closed means success; the result is buffered.
		if images := <-respCh; len(images) != 1 {
			t.Errorf("unexpected images: %v", images)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestQueue_PropagatesErrors(t *testing.T) {
	srv := testServer(t, http.StatusInternalServerError, nil)

	q := New(diffusion.NewClient(srv.URL))
	q.Start()
	defer q.Stop()

	respCh, errCh, err := q.Add(schema.DefaultTxt2ImgRequest())
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected generation error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error")
	}

	if images, ok := <-respCh; ok {
		t.Errorf("expected closed response channel, got %d images", len(images))
	}
}

func TestQueue_AddFullQueue(t *testing.T) {
	// Queue never started, so items accumulate until the buffer fills.
	q := New(diffusion.NewClient("http://localhost:0"))

	var err error
	for i := 0; i <= cap(q.items); i++ {
		_, _, err = q.Add(schema.DefaultTxt2ImgRequest())
		if err != nil {
			break
		}
	}
	if err == nil {
		t.Fatal("expected queue-full error")
	}
}
