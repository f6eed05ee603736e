package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jverhagen/fotomemo/internal/library"
	"github.com/jverhagen/fotomemo/internal/model"
	"github.com/jverhagen/fotomemo/internal/store"
	fmsync "github.com/jverhagen/fotomemo/internal/sync"
)

func newTestServer(t *testing.T) (*Server, *library.Library, *fmsync.StubTransport) {
	t.Helper()
	repo := store.NewMemStore()
	lib := library.New(repo)
	if err := lib.Load(context.Background()); err != nil {
		t.Fatalf("load library: %v", err)
	}

	transport := fmsync.NewStubTransport()
	mirror := fmsync.NewMirror(lib, transport, repo, fmsync.NewSession(), time.Hour)
	t.Cleanup(mirror.Close)
	lib.SetOnChange(mirror.MarkDirty)

	srv := New(lib, repo, mirror, Options{})
	return srv, lib, transport
}

func storedImage(name string, size int64) store.StoredFile {
	meta := model.NewItem(name, size, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	meta.Type = model.TypeImage
	return store.StoredFile{
		ID:       meta.ID,
		Buffer:   []byte("bytes-" + name),
		MimeType: "image/jpeg",
		Meta:     meta,
	}
}

func seedItems(t *testing.T, lib *library.Library, names ...string) {
	t.Helper()
	files := make([]store.StoredFile, 0, len(names))
	for i, name := range names {
		files = append(files, storedImage(name, int64(1024*(i+1))))
	}
	if _, err := lib.Import(context.Background(), files); err != nil {
		t.Fatalf("seed import: %v", err)
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode JSON: %v\nbody: %s", err, rr.Body.String())
	}
	return result
}

func TestLibraryOverview(t *testing.T) {
	srv, lib, _ := newTestServer(t)
	seedItems(t, lib, "a.jpg", "b.jpg")
	h := srv.Handler()

	rr := doRequest(t, h, "GET", "/api/library", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}

	result := decodeJSON(t, rr)
	if result["total"] != float64(2) {
		t.Errorf("total = %v, want 2", result["total"])
	}
	cats, ok := result["categories"].([]any)
	if !ok || len(cats) != 1 {
		t.Fatalf("categories = %v, want one entry", result["categories"])
	}
	first := cats[0].(map[string]any)
	if first["name"] != model.CategoryUnsorted || first["count"] != float64(2) {
		t.Errorf("overview entry = %v", first)
	}
}

func TestSelectFolder_ImportsImages(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data-"+name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	body, _ := json.Marshal(map[string]string{"path": dir})
	rr := doRequest(t, h, "POST", "/api/folder", string(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}

	result := decodeJSON(t, rr)
	if result["scanned"] != float64(2) {
		t.Errorf("scanned = %v, want 2 (text file filtered out)", result["scanned"])
	}
	if result["added"] != float64(2) || result["total"] != float64(2) {
		t.Errorf("added = %v, total = %v, want 2/2", result["added"], result["total"])
	}
	if result["folder_name"] != filepath.Base(dir) {
		t.Errorf("folder_name = %v, want %q", result["folder_name"], filepath.Base(dir))
	}
}

func TestSelectFolder_Validation(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	if rr := doRequest(t, h, "POST", "/api/folder", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty path: status = %d, want 400", rr.Code)
	}
	body, _ := json.Marshal(map[string]string{"path": "/nonexistent/photos"})
	if rr := doRequest(t, h, "POST", "/api/folder", string(body)); rr.Code != http.StatusBadRequest {
		t.Errorf("bad path: status = %d, want 400", rr.Code)
	}
}

func TestRescan_RequiresFolder(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "POST", "/api/folder/rescan", "")
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestRescan_PreservesSorting(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("data-a"), 0644); err != nil {
		t.Fatal(err)
	}
	body, _ := json.Marshal(map[string]string{"path": dir})
	doRequest(t, h, "POST", "/api/folder", string(body))

	// Sort the photo, then rescan the same folder.
	var items []model.Item
	rr := doRequest(t, h, "GET", "/api/items", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &items); err != nil || len(items) != 1 {
		t.Fatalf("items = %v (err %v)", items, err)
	}
	patch, _ := json.Marshal(map[string]string{"custom_name": "best", "category": "Pets", "notes": ""})
	rr = doRequest(t, h, "PATCH", "/api/items/"+items[0].ID, string(patch))
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, h, "POST", "/api/folder/rescan", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("rescan status = %d, body: %s", rr.Code, rr.Body.String())
	}
	result := decodeJSON(t, rr)
	if result["added"] != float64(0) {
		t.Errorf("added = %v, want 0 on rescan", result["added"])
	}

	rr = doRequest(t, h, "GET", "/api/items?category=Pets", "")
	items = nil
	json.Unmarshal(rr.Body.Bytes(), &items)
	if len(items) != 1 || items[0].CustomName != "best" {
		t.Errorf("after rescan: %+v, want sorted item kept", items)
	}
}

func TestListItems_CategoryFilter(t *testing.T) {
	srv, lib, _ := newTestServer(t)
	seedItems(t, lib, "a.jpg", "b.jpg")
	h := srv.Handler()

	a := storedImage("a.jpg", 1024)
	move, _ := json.Marshal(map[string]any{"ids": []string{a.ID}, "category": "Travel"})
	if rr := doRequest(t, h, "POST", "/api/items/move", string(move)); rr.Code != http.StatusOK {
		t.Fatalf("move status = %d", rr.Code)
	}

	var items []model.Item
	rr := doRequest(t, h, "GET", "/api/items?category=Travel", "")
	json.Unmarshal(rr.Body.Bytes(), &items)
	if len(items) != 1 || items[0].ID != a.ID {
		t.Errorf("Travel items = %+v", items)
	}

	rr = doRequest(t, h, "GET", "/api/items?category=Unsorted", "")
	items = nil
	json.Unmarshal(rr.Body.Bytes(), &items)
	if len(items) != 1 {
		t.Errorf("Unsorted items = %+v", items)
	}
}

func TestUpdateItem_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "PATCH", "/api/items/local-ghost.jpg-1", `{"custom_name":"x"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestDeleteItems_TwoStepFlow(t *testing.T) {
	srv, lib, _ := newTestServer(t)
	seedItems(t, lib, "a.jpg", "b.jpg")
	h := srv.Handler()

	a := storedImage("a.jpg", 1024)
	body, _ := json.Marshal(map[string]any{"ids": []string{a.ID}})
	rr := doRequest(t, h, "POST", "/api/items/delete", string(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("request status = %d", rr.Code)
	}
	result := decodeJSON(t, rr)
	token, _ := result["token"].(string)
	if token == "" || result["count"] != float64(1) {
		t.Fatalf("delete request result = %v", result)
	}

	// Nothing is deleted until the token is spent.
	if got := len(lib.Items()); got != 2 {
		t.Fatalf("items = %d before confirm, want 2", got)
	}

	confirm, _ := json.Marshal(map[string]string{"token": token})
	rr = doRequest(t, h, "POST", "/api/items/delete/confirm", string(confirm))
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body: %s", rr.Code, rr.Body.String())
	}
	if decodeJSON(t, rr)["deleted"] != float64(1) {
		t.Errorf("deleted = %v, want 1", decodeJSON(t, rr)["deleted"])
	}
	if got := len(lib.Items()); got != 1 {
		t.Errorf("items = %d after confirm, want 1", got)
	}

	// Tokens are single use.
	rr = doRequest(t, h, "POST", "/api/items/delete/confirm", string(confirm))
	if rr.Code != http.StatusGone {
		t.Errorf("replayed token status = %d, want 410", rr.Code)
	}
}

func TestConfirmDelete_UnknownToken(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "POST", "/api/items/delete/confirm", `{"token":"nope"}`)
	if rr.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", rr.Code)
	}
}

func TestPreview_ServesBytes(t *testing.T) {
	srv, lib, _ := newTestServer(t)
	seedItems(t, lib, "a.jpg")
	h := srv.Handler()

	a := storedImage("a.jpg", 1024)
	rr := doRequest(t, h, "GET", "/api/items/"+a.ID+"/preview", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q", ct)
	}
	if rr.Body.String() != "bytes-a.jpg" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestThumbnail_FallsBackOnUndecodableImage(t *testing.T) {
	srv, lib, _ := newTestServer(t)
	seedItems(t, lib, "a.jpg")
	h := srv.Handler()

	// The seed bytes are not a real JPEG, so the decoder fails and the
	// original bytes come back unchanged.
	a := storedImage("a.jpg", 1024)
	rr := doRequest(t, h, "GET", "/api/items/"+a.ID+"/thumbnail", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Body.String() != "bytes-a.jpg" {
		t.Errorf("body = %q, want original bytes", rr.Body.String())
	}
}

func TestPreview_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "GET", "/api/items/local-ghost.jpg-1/preview", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestViewRoundTrip(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "PUT", "/api/view", `{"view":"folder","category":"Travel"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	rr = doRequest(t, h, "GET", "/api/view", "")
	result := decodeJSON(t, rr)
	if result["view"] != "folder" || result["category"] != "Travel" {
		t.Errorf("view state = %v", result)
	}
}

func TestCategoryLifecycle(t *testing.T) {
	srv, lib, _ := newTestServer(t)
	seedItems(t, lib, "a.jpg")
	h := srv.Handler()

	rr := doRequest(t, h, "POST", "/api/categories", `{"name":"Hiking"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", rr.Code, rr.Body.String())
	}
	if rr = doRequest(t, h, "POST", "/api/categories", `{"name":"Hiking"}`); rr.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", rr.Code)
	}
	if rr = doRequest(t, h, "POST", "/api/categories", `{"name":"Unsorted"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("reserved create status = %d, want 400", rr.Code)
	}

	rr = doRequest(t, h, "PATCH", "/api/categories/Hiking", `{"name":"Alps"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("rename status = %d, body: %s", rr.Code, rr.Body.String())
	}
	if rr = doRequest(t, h, "PATCH", "/api/categories/Hiking", `{"name":"X"}`); rr.Code != http.StatusNotFound {
		t.Errorf("rename gone category status = %d, want 404", rr.Code)
	}

	rr = doRequest(t, h, "DELETE", "/api/categories/Alps", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if rr = doRequest(t, h, "DELETE", "/api/categories/Unsorted", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("delete reserved status = %d, want 400", rr.Code)
	}
}

func TestSyncEndpoints(t *testing.T) {
	srv, lib, transport := newTestServer(t)
	seedItems(t, lib, "a.jpg")
	h := srv.Handler()

	rr := doRequest(t, h, "GET", "/api/sync/status", "")
	if decodeJSON(t, rr)["signed_in"] != false {
		t.Error("signed in before sign-in")
	}

	if rr = doRequest(t, h, "POST", "/api/sync/flush", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("flush signed out status = %d, want 401", rr.Code)
	}
	if rr = doRequest(t, h, "POST", "/api/sync/signin", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("sign-in without token status = %d, want 400", rr.Code)
	}

	rr = doRequest(t, h, "POST", "/api/sync/signin", `{"access_token":"tok"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("sign-in status = %d, body: %s", rr.Code, rr.Body.String())
	}
	if decodeJSON(t, rr)["signed_in"] != true {
		t.Error("not signed in after sign-in")
	}

	rr = doRequest(t, h, "POST", "/api/sync/flush", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("flush status = %d, body: %s", rr.Code, rr.Body.String())
	}
	doc := transport.Doc()
	if doc == nil || len(doc.Metadata) != 1 {
		t.Fatalf("pushed doc = %+v", doc)
	}

	rr = doRequest(t, h, "POST", "/api/sync/signout", "")
	if decodeJSON(t, rr)["signed_in"] != false {
		t.Error("still signed in after sign-out")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "OPTIONS", "/api/items", "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("allow origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}
