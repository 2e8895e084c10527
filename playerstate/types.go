package playerstate

import "fmt"

// SlotCount is the number of equipment slots.
const SlotCount = 5

// SwordSlot is the equipment slot holding the sword; its value is the
// sword level.
const SwordSlot = 2

// Equipment is the ordered set of equipment slots. The position is the slot
// and the value is the item level.
type Equipment struct {
	Items [SlotCount]uint32 `json:"items" jsonschema:"description=Item level per equipment slot; slot 2 is the sword"`
}

// SwordLevel returns the level of the item in the sword slot.
func (e Equipment) SwordLevel() uint32 { return e.Items[SwordSlot] }

// Location places a player in the world.
type Location struct {
	X    int32  `json:"x"`
	Y    int32  `json:"y"`
	Zone string `json:"zone"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s (%d, %d)", l.Zone, l.X, l.Y)
}

// StrictState is the closed player state shape. It carries nothing beyond
// what gameplay legitimately produces.
type StrictState struct {
	Equipment Equipment `json:"equipment"`
	Location  Location  `json:"location"`
}

// PermissiveState is the open player state shape. IsAdmin and Gold are set
// only when the client supplied them; no gameplay path produces either.
type PermissiveState struct {
	Equipment Equipment `json:"equipment"`
	Location  Location  `json:"location"`
	IsAdmin   *bool     `json:"is_admin,omitempty"`
	Gold      *uint32   `json:"gold,omitempty"`
}

// Policy selects how unknown keys are treated during binding.
type Policy int

const (
	// Permissive ignores unknown keys and captures the extension fields.
	Permissive Policy = iota
	// Strict rejects any key outside the declared shape.
	Strict
)

// String returns the endpoint name associated with the policy.
func (p Policy) String() string {
	switch p {
	case Permissive:
		return "vulnerable"
	case Strict:
		return "secure"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps an endpoint name back to its Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "vulnerable", "permissive":
		return Permissive, nil
	case "secure", "strict":
		return Strict, nil
	}
	return 0, fmt.Errorf("unknown policy %q", s)
}
