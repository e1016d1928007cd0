package attachment

import (
	"fmt"

	"github.com/mahawthada/legal-assistant/internal/types"
)

// CapacityError is returned when an add would take a party over MaxFiles.
type CapacityError struct {
	Party     types.Party
	Limit     int
	Attempted int
}

func (e *CapacityError) Error() string {
	if e.Party == "" {
		return fmt.Sprintf("You can upload at most %d files.", e.Limit)
	}
	return fmt.Sprintf("You can upload at most %d files for the %s.", e.Limit, e.Party)
}

// IndexError is returned when a replace or remove targets a missing slot.
type IndexError struct {
	Party types.Party
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("attachment index %d out of range [0,%d)", e.Index, e.Len)
}
