package session

import "context"

// Slot names a persisted credential.
type Slot string

const (
	// SlotAccess holds the bearer credential attached to API requests.
	SlotAccess Slot = "accessToken"
	// SlotRefresh holds the credential exchanged for a new access credential.
	SlotRefresh Slot = "refreshToken"
)

// Valid reports whether s is one of the fixed slot names.
func (s Slot) Valid() bool {
	return s == SlotAccess || s == SlotRefresh
}

// Slots lists every slot in a stable order.
func Slots() []Slot { return []Slot{SlotAccess, SlotRefresh} }

// Store abstracts persistence of credential slots.
//
// Set must apply all values atomically: a reader never observes one slot
// of a pair updated and the other not.
type Store interface {
	// Get returns the slot value or ErrSlotEmpty.
	Get(ctx context.Context, slot Slot) (string, error)

	// Set writes every slot in values.
	Set(ctx context.Context, values map[Slot]string) error

	// Delete removes the named slots. Missing slots are not an error.
	Delete(ctx context.Context, slots ...Slot) error

	// Close releases backend resources.
	Close() error
}

func checkSlots(slots ...Slot) error {
	for _, s := range slots {
		if !s.Valid() {
			return ErrUnknownSlot
		}
	}
	return nil
}

func checkValues(values map[Slot]string) error {
	for s := range values {
		if !s.Valid() {
			return ErrUnknownSlot
		}
	}
	return nil
}
