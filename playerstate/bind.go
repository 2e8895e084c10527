package playerstate

import (
	"fmt"

	"github.com/ggoodman/dungeons-and-money/internal/jsonvalue"
)

const (
	fieldEquipment = "equipment"
	fieldLocation  = "location"
	fieldIsAdmin   = "is_admin"
	fieldGold      = "gold"
)

var strictKeys = []string{fieldEquipment, fieldLocation}

// BindStrict binds v onto the closed StrictState shape. Any top-level key
// other than equipment and location fails the whole binding with
// UnknownField naming the first such key in input order. Nested objects bind
// exactly as under the permissive policy.
func BindStrict(v jsonvalue.Value) (StrictState, error) {
	b := binder{policy: Strict}
	obj, err := b.object(v, "", "", strictKeys)
	if err != nil {
		return StrictState{}, err
	}
	eq, loc, err := b.declared(obj)
	if err != nil {
		return StrictState{}, err
	}
	return StrictState{Equipment: eq, Location: loc}, nil
}

// BindPermissive binds v onto PermissiveState. Unknown keys are ignored and
// the extension fields are captured whenever they are present and well typed.
func BindPermissive(v jsonvalue.Value) (PermissiveState, error) {
	b := binder{policy: Permissive}
	obj, err := b.object(v, "", "", nil)
	if err != nil {
		return PermissiveState{}, err
	}
	eq, loc, err := b.declared(obj)
	if err != nil {
		return PermissiveState{}, err
	}
	st := PermissiveState{Equipment: eq, Location: loc}

	if raw, ok := present(obj, fieldIsAdmin); ok {
		flag, ok := raw.(jsonvalue.Bool)
		if !ok {
			return PermissiveState{}, mismatch(fieldIsAdmin, fieldIsAdmin, "expected boolean, found %s", raw.Kind())
		}
		isAdmin := bool(flag)
		st.IsAdmin = &isAdmin
	}
	if raw, ok := present(obj, fieldGold); ok {
		gold, err := b.uint32(raw, fieldGold, fieldGold)
		if err != nil {
			return PermissiveState{}, err
		}
		st.Gold = &gold
	}
	return st, nil
}

// Bind binds v under policy p and returns the state as either a StrictState
// or a PermissiveState.
func Bind(p Policy, v jsonvalue.Value) (any, error) {
	switch p {
	case Strict:
		return BindStrict(v)
	case Permissive:
		return BindPermissive(v)
	}
	return nil, fmt.Errorf("unsupported policy %v", p)
}

type binder struct {
	policy Policy
}

// object asserts v is an object and, under the strict policy with a non-nil
// allowed set, scans every key against it before anything is bound.
func (b binder) object(v jsonvalue.Value, field, path string, allowed []string) (*jsonvalue.Object, error) {
	obj, ok := v.(*jsonvalue.Object)
	if !ok {
		where := path
		if where == "" {
			where = "$"
		}
		return nil, mismatch(field, where, "expected object, found %s", kindOf(v))
	}
	if b.policy != Strict || allowed == nil {
		return obj, nil
	}
	var (
		unknown string
		found   bool
	)
	obj.Range(func(key string, _ jsonvalue.Value) bool {
		for _, a := range allowed {
			if key == a {
				return true
			}
		}
		unknown, found = key, true
		return false
	})
	if found {
		return nil, &BindError{Kind: UnknownField, Field: unknown, Path: join(path, unknown)}
	}
	return obj, nil
}

// declared binds the two fields shared by both shapes.
func (b binder) declared(obj *jsonvalue.Object) (Equipment, Location, error) {
	eq, err := b.equipment(obj)
	if err != nil {
		return Equipment{}, Location{}, err
	}
	loc, err := b.location(obj)
	if err != nil {
		return Equipment{}, Location{}, err
	}
	return eq, loc, nil
}

func (b binder) equipment(root *jsonvalue.Object) (Equipment, error) {
	raw, err := required(root, fieldEquipment, fieldEquipment, "")
	if err != nil {
		return Equipment{}, err
	}
	obj, err := b.object(raw, fieldEquipment, fieldEquipment, nil)
	if err != nil {
		return Equipment{}, err
	}
	rawItems, err := required(obj, fieldEquipment, "items", fieldEquipment)
	if err != nil {
		return Equipment{}, err
	}
	const path = fieldEquipment + ".items"
	items, ok := rawItems.(jsonvalue.Array)
	if !ok {
		return Equipment{}, mismatch(fieldEquipment, path, "expected array, found %s", kindOf(rawItems))
	}
	if len(items) != SlotCount {
		return Equipment{}, mismatch(fieldEquipment, path, "expected an array of length %d, found %d elements", SlotCount, len(items))
	}
	var eq Equipment
	for i, item := range items {
		level, err := b.uint32(item, fieldEquipment, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return Equipment{}, err
		}
		eq.Items[i] = level
	}
	return eq, nil
}

func (b binder) location(root *jsonvalue.Object) (Location, error) {
	raw, err := required(root, fieldLocation, fieldLocation, "")
	if err != nil {
		return Location{}, err
	}
	obj, err := b.object(raw, fieldLocation, fieldLocation, nil)
	if err != nil {
		return Location{}, err
	}
	var loc Location
	for _, axis := range []struct {
		key string
		dst *int32
	}{{"x", &loc.X}, {"y", &loc.Y}} {
		rawAxis, err := required(obj, fieldLocation, axis.key, fieldLocation)
		if err != nil {
			return Location{}, err
		}
		path := join(fieldLocation, axis.key)
		n, ok := rawAxis.(jsonvalue.Number)
		if !ok {
			return Location{}, mismatch(fieldLocation, path, "expected i32, found %s", kindOf(rawAxis))
		}
		v, err := n.Int32()
		if err != nil {
			return Location{}, mismatch(fieldLocation, path, "expected i32: %v", err)
		}
		*axis.dst = v
	}
	rawZone, err := required(obj, fieldLocation, "zone", fieldLocation)
	if err != nil {
		return Location{}, err
	}
	zone, ok := rawZone.(jsonvalue.String)
	if !ok {
		return Location{}, mismatch(fieldLocation, join(fieldLocation, "zone"), "expected string, found %s", kindOf(rawZone))
	}
	loc.Zone = string(zone)
	return loc, nil
}

func (b binder) uint32(v jsonvalue.Value, field, path string) (uint32, error) {
	n, ok := v.(jsonvalue.Number)
	if !ok {
		return 0, mismatch(field, path, "expected u32, found %s", kindOf(v))
	}
	u, err := n.Uint32()
	if err != nil {
		return 0, mismatch(field, path, "expected u32: %v", err)
	}
	return u, nil
}

// required returns obj[key] or a MissingField error. An explicit null is
// returned as is and fails the caller's type check.
func required(obj *jsonvalue.Object, field, key, parent string) (jsonvalue.Value, error) {
	v, ok := obj.Get(key)
	if !ok {
		return nil, &BindError{Kind: MissingField, Field: field, Path: join(parent, key)}
	}
	return v, nil
}

// present returns obj[key] unless it is absent or null. Only optional
// fields treat null as absent.
func present(obj *jsonvalue.Object, key string) (jsonvalue.Value, bool) {
	v, ok := obj.Get(key)
	if !ok || v.Kind() == jsonvalue.KindNull {
		return nil, false
	}
	return v, true
}

func mismatch(field, path, format string, args ...any) *BindError {
	return &BindError{Kind: TypeMismatch, Field: field, Path: path, Reason: fmt.Sprintf(format, args...)}
}

func kindOf(v jsonvalue.Value) string {
	if v == nil {
		return "nothing"
	}
	return v.Kind().String()
}

func join(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
