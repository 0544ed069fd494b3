package internal

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Annotations manages the client-side state layered over conversations:
// saved (bookmarked) chats, free-text notes, and the viewed set that drives
// new-conversation badges. Everything is persisted through the KVStore and
// scoped to the active environment.
type Annotations struct {
	store KVStore
}

// NewAnnotations builds an annotation manager over the given store.
func NewAnnotations(store KVStore) *Annotations {
	return &Annotations{store: store}
}

func (a *Annotations) loadList(baseKey string) ([]string, error) {
	raw, ok, err := a.store.Get(baseKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, &ParseError{Source: baseKey, Err: err}
	}
	return list, nil
}

func (a *Annotations) saveList(baseKey string, list []string) error {
	if len(list) == 0 {
		return a.store.Delete(baseKey)
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", baseKey, err)
	}
	return a.store.Set(baseKey, string(raw))
}

// SavedChats returns the saved conversation ids, sorted.
func (a *Annotations) SavedChats() ([]string, error) {
	list, err := a.loadList(KeySavedChats)
	if err != nil {
		return nil, err
	}
	sort.Strings(list)
	return list, nil
}

// SetSaved marks or unmarks a conversation as saved. Both directions are
// idempotent.
func (a *Annotations) SetSaved(id string, saved bool) error {
	list, err := a.loadList(KeySavedChats)
	if err != nil {
		return err
	}
	updated := make([]string, 0, len(list)+1)
	present := false
	for _, existing := range list {
		if existing == id {
			present = true
			if !saved {
				continue
			}
		}
		updated = append(updated, existing)
	}
	if saved && !present {
		updated = append(updated, id)
	}
	return a.saveList(KeySavedChats, updated)
}

// IsSaved reports whether the conversation is saved.
func (a *Annotations) IsSaved(id string) (bool, error) {
	list, err := a.loadList(KeySavedChats)
	if err != nil {
		return false, err
	}
	for _, existing := range list {
		if existing == id {
			return true, nil
		}
	}
	return false, nil
}

// Notes returns all conversation notes keyed by conversation id.
func (a *Annotations) Notes() (map[string]string, error) {
	raw, ok, err := a.store.Get(KeyChatNotes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]string{}, nil
	}
	var notes map[string]string
	if err := json.Unmarshal([]byte(raw), &notes); err != nil {
		return nil, &ParseError{Source: KeyChatNotes, Err: err}
	}
	return notes, nil
}

// SetNote attaches a note to a conversation. An empty note removes the
// entry.
func (a *Annotations) SetNote(id, note string) error {
	notes, err := a.Notes()
	if err != nil {
		return err
	}
	if note == "" {
		delete(notes, id)
	} else {
		notes[id] = note
	}
	if len(notes) == 0 {
		return a.store.Delete(KeyChatNotes)
	}
	raw, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("failed to serialize notes: %w", err)
	}
	return a.store.Set(KeyChatNotes, string(raw))
}

// Note returns the note for a conversation, empty when none exists.
func (a *Annotations) Note(id string) (string, error) {
	notes, err := a.Notes()
	if err != nil {
		return "", err
	}
	return notes[id], nil
}

// MarkViewed records that a conversation has been opened.
func (a *Annotations) MarkViewed(id string) error {
	list, err := a.loadList(KeyViewedChats)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing == id {
			return nil
		}
	}
	return a.saveList(KeyViewedChats, append(list, id))
}

// ViewedSet returns the viewed conversation ids as a set.
func (a *Annotations) ViewedSet() (map[string]bool, error) {
	list, err := a.loadList(KeyViewedChats)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(list))
	for _, id := range list {
		set[id] = true
	}
	return set, nil
}

// Apply decorates conversations in place with their saved flags and notes.
func (a *Annotations) Apply(convs []*Conversation) error {
	saved, err := a.SavedChats()
	if err != nil {
		return err
	}
	savedSet := make(map[string]bool, len(saved))
	for _, id := range saved {
		savedSet[id] = true
	}
	notes, err := a.Notes()
	if err != nil {
		return err
	}
	for _, conv := range convs {
		if conv == nil {
			continue
		}
		conv.Saved = savedSet[conv.ID]
		conv.Notes = notes[conv.ID]
	}
	return nil
}
