package models

// WordEntry is one vocabulary item loaded from a level's word list.
// Entries are treated as immutable once loaded.
type WordEntry struct {
	ID        string   `json:"id"`
	Language  Language `json:"lang"`
	Level     Level    `json:"level"`
	Index     int      `json:"index"`
	Word      string   `json:"word"`
	Slug      string   `json:"slug,omitempty"`
	AudioPath string   `json:"file"`
}

// EntryKey uniquely identifies an entry across all loaded word lists
type EntryKey struct {
	Language Language
	Level    Level
	ID       string
}

// Key returns the entry's unique key
func (e WordEntry) Key() EntryKey {
	return EntryKey{Language: e.Language, Level: e.Level, ID: e.ID}
}

// Selection is the language and levels a learner currently practises
type Selection struct {
	Language Language
	Levels   []Level
}
