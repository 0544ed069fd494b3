package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// UploadedData is the persisted blob of locally imported payloads. While it
// is non-empty the dashboard runs offline: reads are served from here and
// the network is never touched.
type UploadedData struct {
	Conversations []Conversation       `json:"conversations,omitempty"`
	Threads       []Thread             `json:"threads,omitempty"`
	Attributes    []AttributesResponse `json:"attributes,omitempty"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// IsEmpty reports whether the blob holds no payloads at all.
func (u *UploadedData) IsEmpty() bool {
	return u == nil || (len(u.Conversations) == 0 && len(u.Threads) == 0 && len(u.Attributes) == 0)
}

// AcceptedFile records one successfully imported payload.
type AcceptedFile struct {
	Name    string
	Kind    PayloadKind
	Summary string
}

// RejectedFile records one import failure with its human-readable reason.
type RejectedFile struct {
	Name   string
	Reason string
}

// ImportResult is the per-file outcome of an import run. A rejected file
// never aborts the run; the remaining files still import.
type ImportResult struct {
	Accepted []AcceptedFile
	Rejected []RejectedFile
}

// Importer validates uploaded JSON payloads and merges them into the
// persisted uploaded-data blob.
type Importer struct {
	store KVStore
}

// NewImporter builds an importer over the given store.
func NewImporter(store KVStore) *Importer {
	return &Importer{store: store}
}

// LoadUploadedData reads the persisted blob, returning an empty one when
// nothing has been uploaded.
func (im *Importer) LoadUploadedData() (*UploadedData, error) {
	raw, ok, err := im.store.Get(KeyUploadedData)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &UploadedData{}, nil
	}
	var data UploadedData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, &ParseError{Source: KeyUploadedData, Err: err}
	}
	return &data, nil
}

// ClearUploadedData removes the blob, returning the dashboard to remote
// mode.
func (im *Importer) ClearUploadedData() error {
	return im.store.Delete(KeyUploadedData)
}

// ImportFiles reads, detects and merges each file. Files that fail
// validation are reported in the result and skipped; the run fails outright
// only when the merged blob cannot be persisted.
func (im *Importer) ImportFiles(paths []string) (*ImportResult, error) {
	data, err := im.LoadUploadedData()
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for _, path := range paths {
		name := filepath.Base(path)
		raw, err := os.ReadFile(path)
		if err != nil {
			LogWarn("Skipping %s: %v", name, err)
			result.Rejected = append(result.Rejected, RejectedFile{Name: name, Reason: fmt.Sprintf("could not read file: %v", err)})
			continue
		}
		payload, err := DetectPayload(name, raw)
		if err != nil {
			LogWarn("Skipping %s: %v", name, err)
			result.Rejected = append(result.Rejected, RejectedFile{Name: name, Reason: err.Error()})
			continue
		}
		data.merge(payload)
		result.Accepted = append(result.Accepted, AcceptedFile{Name: name, Kind: payload.Kind, Summary: payload.Describe()})
		LogDebug("Imported %s: %s", name, payload.Describe())
	}

	if len(result.Accepted) > 0 {
		if err := im.persist(data); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ImportPayload merges a single already-read payload, for pasted text.
func (im *Importer) ImportPayload(name string, raw []byte) (*DetectedPayload, error) {
	payload, err := DetectPayload(name, raw)
	if err != nil {
		return nil, err
	}
	data, err := im.LoadUploadedData()
	if err != nil {
		return nil, err
	}
	data.merge(payload)
	if err := im.persist(data); err != nil {
		return nil, err
	}
	return payload, nil
}

func (im *Importer) persist(data *UploadedData) error {
	data.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize uploaded data: %w", err)
	}
	return im.store.Set(KeyUploadedData, string(raw))
}

// merge folds a detected payload into the blob, replacing entries that share
// an id so re-importing a corrected file updates in place.
func (u *UploadedData) merge(payload *DetectedPayload) {
	switch payload.Kind {
	case PayloadConversation:
		u.Conversations = upsertConversation(u.Conversations, *payload.Conversation)
	case PayloadThreads:
		for _, t := range payload.Threads.Threads {
			u.Threads = upsertThread(u.Threads, t)
		}
	case PayloadAttributes:
		u.Attributes = upsertAttributes(u.Attributes, *payload.Attributes)
	case PayloadBulkAttributes:
		for _, r := range payload.Bulk.Results {
			u.Attributes = upsertAttributes(u.Attributes, r)
		}
	}
}

func upsertConversation(list []Conversation, conv Conversation) []Conversation {
	for i := range list {
		if list[i].ID == conv.ID {
			list[i] = conv
			return list
		}
	}
	return append(list, conv)
}

func upsertThread(list []Thread, t Thread) []Thread {
	for i := range list {
		if list[i].ID == t.ID {
			list[i] = t
			return list
		}
	}
	return append(list, t)
}

func upsertAttributes(list []AttributesResponse, attr AttributesResponse) []AttributesResponse {
	for i := range list {
		if list[i].ThreadID == attr.ThreadID {
			list[i] = attr
			return list
		}
	}
	return append(list, attr)
}
