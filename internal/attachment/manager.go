package attachment

import (
	"fmt"

	"github.com/mahawthada/legal-assistant/internal/types"
)

// Manager holds the plaintiff and defendant file lists of one case draft.
// It is not safe for concurrent use; the owner serializes access.
type Manager struct {
	files map[types.Party][]File
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{files: make(map[types.Party][]File, 2)}
}

func checkParty(p types.Party) error {
	if !p.Valid() {
		return fmt.Errorf("unknown party %q", p)
	}
	return nil
}

// Add appends files to the party's list.
func (m *Manager) Add(p types.Party, files ...File) error {
	if err := checkParty(p); err != nil {
		return err
	}
	updated, err := Add(m.files[p], files)
	if err != nil {
		if ce, ok := err.(*CapacityError); ok {
			ce.Party = p
		}
		return err
	}
	m.files[p] = updated
	return nil
}

// Replace swaps the party's file at index.
func (m *Manager) Replace(p types.Party, index int, f File) error {
	if err := checkParty(p); err != nil {
		return err
	}
	updated, err := ReplaceAt(m.files[p], index, f)
	if err != nil {
		if ie, ok := err.(*IndexError); ok {
			ie.Party = p
		}
		return err
	}
	m.files[p] = updated
	return nil
}

// Remove drops the party's file at index.
func (m *Manager) Remove(p types.Party, index int) error {
	if err := checkParty(p); err != nil {
		return err
	}
	updated, err := RemoveAt(m.files[p], index)
	if err != nil {
		if ie, ok := err.(*IndexError); ok {
			ie.Party = p
		}
		return err
	}
	m.files[p] = updated
	return nil
}

// Files returns a copy of the party's list.
func (m *Manager) Files(p types.Party) []File {
	src := m.files[p]
	out := make([]File, len(src))
	copy(out, src)
	return out
}

// Valid reports whether both parties have an acceptable number of files.
func (m *Manager) Valid() bool {
	return IsValid(m.files[types.Plaintiff]) && IsValid(m.files[types.Defendant])
}

// Reset clears both lists.
func (m *Manager) Reset() {
	clear(m.files)
}
