package internal

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tkrueger/chatlens/testutil"
)

func TestImporter_ImportFiles(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	good := testutil.WritePayloadFile(t, dir, "conv.json",
		testutil.ConversationJSON(t, "conv-1", "Trip planning",
			testutil.MessageJSON("msg-1", "user", "Hello", time.Time{})))
	bad := testutil.WritePayloadFile(t, dir, "broken.json", []byte("{truncated"))

	store := NewMemStore()
	im := NewImporter(store)
	result, err := im.ImportFiles([]string{good, bad})
	if err != nil {
		t.Fatalf("ImportFiles() error = %v", err)
	}

	if len(result.Accepted) != 1 {
		t.Fatalf("len(Accepted) = %d, want 1", len(result.Accepted))
	}
	if result.Accepted[0].Name != "conv.json" || result.Accepted[0].Kind != PayloadConversation {
		t.Errorf("Accepted[0] = %+v", result.Accepted[0])
	}
	if result.Accepted[0].Summary != "conversation conv-1 (1 messages)" {
		t.Errorf("Summary = %q", result.Accepted[0].Summary)
	}
	if len(result.Rejected) != 1 {
		t.Fatalf("len(Rejected) = %d, want 1", len(result.Rejected))
	}
	if result.Rejected[0].Name != "broken.json" || !strings.Contains(result.Rejected[0].Reason, "not valid JSON") {
		t.Errorf("Rejected[0] = %+v", result.Rejected[0])
	}

	data, err := im.LoadUploadedData()
	if err != nil {
		t.Fatalf("LoadUploadedData() error = %v", err)
	}
	if len(data.Conversations) != 1 || data.Conversations[0].ID != "conv-1" {
		t.Errorf("Conversations = %+v, want conv-1", data.Conversations)
	}
	if data.UpdatedAt.IsZero() {
		t.Error("UpdatedAt is zero, want the persist time")
	}
}

func TestImporter_ImportFiles_MissingFile(t *testing.T) {
	store := NewMemStore()
	im := NewImporter(store)

	missing := filepath.Join(testutil.CreateTempDir(t), "nope.json")
	result, err := im.ImportFiles([]string{missing})
	if err != nil {
		t.Fatalf("ImportFiles() error = %v", err)
	}
	if len(result.Rejected) != 1 || !strings.Contains(result.Rejected[0].Reason, "could not read file") {
		t.Errorf("Rejected = %+v, want a read failure", result.Rejected)
	}

	// Nothing accepted, so nothing is persisted.
	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", store.Len())
	}
}

func TestImporter_ImportFiles_UpsertsByID(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	first := testutil.WritePayloadFile(t, dir, "first.json",
		testutil.ConversationJSON(t, "conv-1", "Old title"))
	second := testutil.WritePayloadFile(t, dir, "second.json",
		testutil.ConversationJSON(t, "conv-1", "New title",
			testutil.MessageJSON("msg-1", "user", "Hello", time.Time{})))

	im := NewImporter(NewMemStore())
	if _, err := im.ImportFiles([]string{first}); err != nil {
		t.Fatalf("ImportFiles(first) error = %v", err)
	}
	if _, err := im.ImportFiles([]string{second}); err != nil {
		t.Fatalf("ImportFiles(second) error = %v", err)
	}

	data, err := im.LoadUploadedData()
	if err != nil {
		t.Fatalf("LoadUploadedData() error = %v", err)
	}
	if len(data.Conversations) != 1 {
		t.Fatalf("len(Conversations) = %d, want the re-import to replace", len(data.Conversations))
	}
	if data.Conversations[0].Title != "New title" || len(data.Conversations[0].Messages) != 1 {
		t.Errorf("Conversations[0] = %+v, want the newer payload", data.Conversations[0])
	}
}

func TestImporter_ImportFiles_MergesKinds(t *testing.T) {
	createdAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	dir := testutil.CreateTempDir(t)
	threads := testutil.WritePayloadFile(t, dir, "threads.json",
		testutil.ThreadsJSON(t,
			testutil.ThreadJSON(testutil.ThreadID("support"), "conv-1", createdAt)))
	bulk := testutil.WritePayloadFile(t, dir, "bulk.json",
		testutil.BulkAttributesJSON(t,
			testutil.AttributeResultJSON(testutil.ThreadID("support"), "completed", nil),
			testutil.AttributeResultJSON(testutil.ThreadID("travel"), "completed", nil)))

	im := NewImporter(NewMemStore())
	result, err := im.ImportFiles([]string{threads, bulk})
	if err != nil {
		t.Fatalf("ImportFiles() error = %v", err)
	}
	if len(result.Accepted) != 2 {
		t.Fatalf("len(Accepted) = %d, want 2", len(result.Accepted))
	}

	data, err := im.LoadUploadedData()
	if err != nil {
		t.Fatalf("LoadUploadedData() error = %v", err)
	}
	if len(data.Threads) != 1 {
		t.Errorf("len(Threads) = %d, want 1", len(data.Threads))
	}
	if len(data.Attributes) != 2 {
		t.Errorf("len(Attributes) = %d, want 2", len(data.Attributes))
	}
	if data.IsEmpty() {
		t.Error("IsEmpty() = true after import")
	}
}

func TestImporter_ImportPayload(t *testing.T) {
	im := NewImporter(NewMemStore())
	payload, err := im.ImportPayload("pasted.json",
		testutil.AttributesJSON(t, testutil.ThreadID("support"), "completed", nil))
	if err != nil {
		t.Fatalf("ImportPayload() error = %v", err)
	}
	if payload.Kind != PayloadAttributes {
		t.Errorf("Kind = %s, want %s", payload.Kind, PayloadAttributes)
	}

	data, err := im.LoadUploadedData()
	if err != nil {
		t.Fatalf("LoadUploadedData() error = %v", err)
	}
	if len(data.Attributes) != 1 {
		t.Errorf("len(Attributes) = %d, want 1", len(data.Attributes))
	}
}

func TestImporter_ImportPayload_Invalid(t *testing.T) {
	store := NewMemStore()
	im := NewImporter(store)
	if _, err := im.ImportPayload("pasted.json", []byte(`{"foo": 1}`)); err == nil {
		t.Fatal("ImportPayload() error = nil, want schema error")
	}
	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", store.Len())
	}
}

func TestImporter_ClearUploadedData(t *testing.T) {
	store := NewMemStore()
	im := NewImporter(store)
	if _, err := im.ImportPayload("conv.json", testutil.ConversationJSON(t, "conv-1", "Title")); err != nil {
		t.Fatalf("ImportPayload() error = %v", err)
	}
	if err := im.ClearUploadedData(); err != nil {
		t.Fatalf("ClearUploadedData() error = %v", err)
	}

	data, err := im.LoadUploadedData()
	if err != nil {
		t.Fatalf("LoadUploadedData() error = %v", err)
	}
	if !data.IsEmpty() {
		t.Error("IsEmpty() = false after clear")
	}
	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", store.Len())
	}
}

func TestUploadedData_IsEmpty(t *testing.T) {
	empty := &UploadedData{UpdatedAt: time.Now()}
	if !empty.IsEmpty() {
		t.Error("IsEmpty() = false for a blob with no payloads")
	}
	withThread := &UploadedData{Threads: []Thread{{ID: "t"}}}
	if withThread.IsEmpty() {
		t.Error("IsEmpty() = true for a blob with a thread")
	}
}
