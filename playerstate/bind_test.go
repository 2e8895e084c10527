package playerstate

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ggoodman/dungeons-and-money/internal/jsonvalue"
)

const (
	declaredOnly = `{"equipment":{"items":[0,0,1,0,0]},"location":{"x":12,"y":15,"zone":"Starting Area"}}`
	injectedFields = `{"equipment":{"items":[0,0,99,0,0]},"location":{"x":12,"y":15,"zone":"Starting Area"},"is_admin":true,"gold":50000}`
	mistypedCoordinate = `{"equipment":{"items":[0,0,1,0,0]},"location":{"x":"twelve","y":15,"zone":"Starting Area"}}`
)

func mustParse(t *testing.T, s string) jsonvalue.Value {
	t.Helper()
	v, err := jsonvalue.Parse([]byte(s))
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return v
}

func mustBindError(t *testing.T, err error) *BindError {
	t.Helper()
	var be *BindError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BindError, got %T (%v)", err, err)
	}
	return be
}

func TestDeclaredOnlyPayloadBindsUnderBothPolicies(t *testing.T) {
	v := mustParse(t, declaredOnly)

	strict, err := BindStrict(v)
	if err != nil {
		t.Fatalf("strict bind: %v", err)
	}
	permissive, err := BindPermissive(v)
	if err != nil {
		t.Fatalf("permissive bind: %v", err)
	}

	if !reflect.DeepEqual(strict.Equipment, permissive.Equipment) || !reflect.DeepEqual(strict.Location, permissive.Location) {
		t.Fatalf("policies disagree: strict %+v permissive %+v", strict, permissive)
	}
	if want, got := uint32(1), strict.Equipment.SwordLevel(); want != got {
		t.Fatalf("unexpected sword level: want %d got %d", want, got)
	}
	if want, got := (Location{X: 12, Y: 15, Zone: "Starting Area"}), strict.Location; want != got {
		t.Fatalf("unexpected location: want %+v got %+v", want, got)
	}
	if permissive.IsAdmin != nil || permissive.Gold != nil {
		t.Fatalf("extension fields must stay unset: %+v", permissive)
	}
}

func TestInjectedFieldsSplitThePolicies(t *testing.T) {
	v := mustParse(t, injectedFields)

	t.Run("permissive captures the injected fields", func(t *testing.T) {
		st, err := BindPermissive(v)
		if err != nil {
			t.Fatalf("permissive bind: %v", err)
		}
		if want, got := uint32(99), st.Equipment.SwordLevel(); want != got {
			t.Fatalf("unexpected sword level: want %d got %d", want, got)
		}
		if st.IsAdmin == nil || !*st.IsAdmin {
			t.Fatalf("expected is_admin to be captured as true, got %v", st.IsAdmin)
		}
		if st.Gold == nil || *st.Gold != 50000 {
			t.Fatalf("expected gold to be captured as 50000, got %v", st.Gold)
		}
	})

	t.Run("strict names the first unexpected key", func(t *testing.T) {
		st, err := BindStrict(v)
		be := mustBindError(t, err)
		if be.Kind != UnknownField {
			t.Fatalf("expected UnknownField, got %s", be.Kind)
		}
		if want, got := "is_admin", be.Field; want != got {
			t.Fatalf("unexpected field: want %q got %q", want, got)
		}
		if !errors.Is(err, ErrUnknownField) || errors.Is(err, ErrMissingField) || errors.Is(err, ErrTypeMismatch) {
			t.Fatalf("sentinel matching is wrong for %v", err)
		}
		if !reflect.DeepEqual(st, StrictState{}) {
			t.Fatalf("expected zero state on failure, got %+v", st)
		}
	})
}

func TestMistypedCoordinateFailsBothPolicies(t *testing.T) {
	v := mustParse(t, mistypedCoordinate)
	for name, bind := range map[string]func(jsonvalue.Value) error{
		"strict":     func(v jsonvalue.Value) error { _, err := BindStrict(v); return err },
		"permissive": func(v jsonvalue.Value) error { _, err := BindPermissive(v); return err },
	} {
		t.Run(name, func(t *testing.T) {
			be := mustBindError(t, bind(v))
			if be.Kind != TypeMismatch {
				t.Fatalf("expected TypeMismatch, got %s (%v)", be.Kind, be)
			}
			if want, got := "location", be.Field; want != got {
				t.Fatalf("unexpected field: want %q got %q", want, got)
			}
			if want, got := "location.x", be.Path; want != got {
				t.Fatalf("unexpected path: want %q got %q", want, got)
			}
		})
	}
}

func TestStrictRejectsAnyExtraKey(t *testing.T) {
	cases := []struct {
		name      string
		in        string
		wantField string
		wantPath  string
	}{
		{
			name:      "extra key before declared fields",
			in:        `{"gold":1,"equipment":{"items":[0,0,1,0,0]},"location":{"x":1,"y":2,"zone":"z"}}`,
			wantField: "gold",
			wantPath:  "gold",
		},
		{
			name:      "first of several unknown keys wins",
			in:        `{"equipment":{"items":[0,0,1,0,0]},"zz":0,"aa":0,"location":{"x":1,"y":2,"zone":"z"}}`,
			wantField: "zz",
			wantPath:  "zz",
		},
		{
			name:      "unknown key reported even when a declared field is malformed",
			in:        `{"equipment":"broken","location":{"x":1,"y":2,"zone":"z"},"is_admin":false}`,
			wantField: "is_admin",
			wantPath:  "is_admin",
		},
		{
			name:      "unknown key reported even when a declared field is missing",
			in:        `{"location":{"x":1,"y":2,"zone":"z"},"role":"admin"}`,
			wantField: "role",
			wantPath:  "role",
		},
		{
			name:      "null-valued extra key",
			in:        `{"equipment":{"items":[0,0,1,0,0]},"location":{"x":1,"y":2,"zone":"z"},"gold":null}`,
			wantField: "gold",
			wantPath:  "gold",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := mustParse(t, tc.in)

			_, err := BindStrict(v)
			be := mustBindError(t, err)
			if be.Kind != UnknownField {
				t.Fatalf("expected UnknownField, got %s (%v)", be.Kind, be)
			}
			if be.Field != tc.wantField || be.Path != tc.wantPath {
				t.Fatalf("unexpected location of error: want %s/%s got %s/%s", tc.wantField, tc.wantPath, be.Field, be.Path)
			}
			if !strings.Contains(be.Error(), tc.wantPath) {
				t.Fatalf("diagnostic must name the offending field, got %q", be.Error())
			}
		})
	}
}

func TestStrictIgnoresNestedExtras(t *testing.T) {
	cases := map[string]string{
		"equipment": `{"equipment":{"items":[0,0,1,0,0],"note":"x"},"location":{"x":1,"y":2,"zone":"z"}}`,
		"location":  `{"equipment":{"items":[0,0,1,0,0]},"location":{"x":1,"y":2,"zone":"z","z":3}}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			v := mustParse(t, in)
			permissive, err := BindPermissive(v)
			if err != nil {
				t.Fatalf("permissive bind: %v", err)
			}
			strict, err := BindStrict(v)
			if err != nil {
				t.Fatalf("strict bind: %v", err)
			}
			if !reflect.DeepEqual(strict.Equipment, permissive.Equipment) || strict.Location != permissive.Location {
				t.Fatalf("policies disagree: strict %+v permissive %+v", strict, permissive)
			}
		})
	}
}

func TestPermissiveIgnoresUnknownKeys(t *testing.T) {
	v := mustParse(t, `{"role":"admin","equipment":{"items":[1,2,3,4,5],"cursed":true},"location":{"x":-1,"y":2,"zone":"z","z":9},"gold":null}`)
	st, err := BindPermissive(v)
	if err != nil {
		t.Fatalf("permissive bind: %v", err)
	}
	if want, got := [SlotCount]uint32{1, 2, 3, 4, 5}, st.Equipment.Items; want != got {
		t.Fatalf("unexpected items: want %v got %v", want, got)
	}
	if st.Gold != nil {
		t.Fatalf("null gold must leave the slot unset, got %d", *st.Gold)
	}
}

func TestPermissiveRejectsIllTypedExtensions(t *testing.T) {
	cases := map[string]string{
		"is_admin": `{"equipment":{"items":[0,0,1,0,0]},"location":{"x":1,"y":2,"zone":"z"},"is_admin":"yes"}`,
		"gold":     `{"equipment":{"items":[0,0,1,0,0]},"location":{"x":1,"y":2,"zone":"z"},"gold":-5}`,
	}
	for field, in := range cases {
		t.Run(field, func(t *testing.T) {
			_, err := BindPermissive(mustParse(t, in))
			be := mustBindError(t, err)
			if be.Kind != TypeMismatch || be.Field != field {
				t.Fatalf("expected TypeMismatch on %s, got %s on %s", field, be.Kind, be.Field)
			}
		})
	}
}

func TestDeclaredFieldFailures(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		kind     ErrorKind
		field    string
		wantPath string
	}{
		{name: "not an object", in: `[1,2]`, kind: TypeMismatch, field: "", wantPath: "$"},
		{name: "missing equipment", in: `{"location":{"x":1,"y":2,"zone":"z"}}`, kind: MissingField, field: "equipment", wantPath: "equipment"},
		{name: "missing location", in: `{"equipment":{"items":[0,0,1,0,0]}}`, kind: MissingField, field: "location", wantPath: "location"},
		{name: "missing zone", in: `{"equipment":{"items":[0,0,1,0,0]},"location":{"x":1,"y":2}}`, kind: MissingField, field: "location", wantPath: "location.zone"},
		{name: "null equipment", in: `{"equipment":null,"location":{"x":1,"y":2,"zone":"z"}}`, kind: TypeMismatch, field: "equipment", wantPath: "equipment"},
		{name: "short item list", in: `{"equipment":{"items":[0,0,1]},"location":{"x":1,"y":2,"zone":"z"}}`, kind: TypeMismatch, field: "equipment", wantPath: "equipment.items"},
		{name: "fractional item level", in: `{"equipment":{"items":[0,0,1.5,0,0]},"location":{"x":1,"y":2,"zone":"z"}}`, kind: TypeMismatch, field: "equipment", wantPath: "equipment.items[2]"},
		{name: "item level overflow", in: `{"equipment":{"items":[0,0,4294967296,0,0]},"location":{"x":1,"y":2,"zone":"z"}}`, kind: TypeMismatch, field: "equipment", wantPath: "equipment.items[2]"},
		{name: "coordinate overflow", in: `{"equipment":{"items":[0,0,1,0,0]},"location":{"x":1,"y":2147483648,"zone":"z"}}`, kind: TypeMismatch, field: "location", wantPath: "location.y"},
		{name: "numeric zone", in: `{"equipment":{"items":[0,0,1,0,0]},"location":{"x":1,"y":2,"zone":7}}`, kind: TypeMismatch, field: "location", wantPath: "location.zone"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := mustParse(t, tc.in)
			for _, p := range []Policy{Strict, Permissive} {
				_, err := Bind(p, v)
				be := mustBindError(t, err)
				if be.Kind != tc.kind || be.Field != tc.field || be.Path != tc.wantPath {
					t.Fatalf("%s: want %s %q %q, got %s %q %q", p, tc.kind, tc.field, tc.wantPath, be.Kind, be.Field, be.Path)
				}
			}
		})
	}
}

func TestBindingIsIdempotent(t *testing.T) {
	for _, in := range []string{declaredOnly, injectedFields} {
		v := mustParse(t, in)

		p1, err1 := BindPermissive(v)
		p2, err2 := BindPermissive(v)
		if !reflect.DeepEqual(p1, p2) || (err1 == nil) != (err2 == nil) {
			t.Fatalf("permissive binding is not repeatable: %+v / %+v", p1, p2)
		}

		s1, err1 := BindStrict(v)
		s2, err2 := BindStrict(v)
		if !reflect.DeepEqual(s1, s2) || !reflect.DeepEqual(err1, err2) {
			t.Fatalf("strict binding is not repeatable: %+v %v / %+v %v", s1, err1, s2, err2)
		}
	}
}

func TestStrictRoundTrip(t *testing.T) {
	states := []StrictState{
		{},
		{Equipment: Equipment{Items: [SlotCount]uint32{0, 0, 1, 0, 0}}, Location: Location{X: 12, Y: 15, Zone: "Starting Area"}},
		{Equipment: Equipment{Items: [SlotCount]uint32{4294967295, 1, 2, 3, 4}}, Location: Location{X: -2147483648, Y: 2147483647, Zone: "ünïcode \"quoted\""}},
	}
	for _, want := range states {
		b, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		got, err := BindStrict(mustParse(t, string(b)))
		if err != nil {
			t.Fatalf("rebinding %s: %v", b, err)
		}
		if want != got {
			t.Fatalf("round trip mismatch: want %+v got %+v", want, got)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []Policy{Permissive, Strict} {
		got, err := ParsePolicy(p.String())
		if err != nil || got != p {
			t.Fatalf("ParsePolicy(%q) = %v, %v", p.String(), got, err)
		}
	}
	if _, err := ParsePolicy("lenient"); err == nil {
		t.Fatalf("expected unknown policy to fail")
	}
}
