package pipeline

import (
	"errors"
	"testing"

	"github.com/ggoodman/dungeons-and-money/internal/blob"
	"github.com/ggoodman/dungeons-and-money/internal/jsonvalue"
	"github.com/ggoodman/dungeons-and-money/playerstate"
)

func TestStagesShortCircuit(t *testing.T) {
	cases := []struct {
		name      string
		encoded   string
		wantStage Stage
		check     func(t *testing.T, err error)
	}{
		{
			name:      "bad transport encoding",
			encoded:   "%%%",
			wantStage: Decoded,
			check: func(t *testing.T, err error) {
				var de *blob.DecodeError
				if !errors.As(err, &de) {
					t.Fatalf("expected *blob.DecodeError, got %v", err)
				}
			},
		},
		{
			name:      "valid encoding of invalid JSON",
			encoded:   blob.Encode([]byte("{\"equipment\":\n  {\"items\": [0,0,1,0,0]},\n  \"gold\": 5,,\n}")),
			wantStage: Parsed,
			check: func(t *testing.T, err error) {
				var se *jsonvalue.SyntaxError
				if !errors.As(err, &se) {
					t.Fatalf("expected *jsonvalue.SyntaxError, got %v", err)
				}
				if se.Line != 3 {
					t.Fatalf("expected the error on line 3, got %d:%d", se.Line, se.Column)
				}
				var be *playerstate.BindError
				if errors.As(err, &be) {
					t.Fatalf("a syntax failure must never reach the binder")
				}
			},
		},
		{
			name:      "unknown field",
			encoded:   blob.Encode([]byte(`{"equipment":{"items":[0,0,1,0,0]},"location":{"x":1,"y":2,"zone":"z"},"is_admin":true}`)),
			wantStage: Bound,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, playerstate.ErrUnknownField) {
					t.Fatalf("expected unknown field, got %v", err)
				}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Strict(tc.encoded)
			var pe *Error
			if !errors.As(err, &pe) {
				t.Fatalf("expected *pipeline.Error, got %T (%v)", err, err)
			}
			if want, got := tc.wantStage, pe.Stage; want != got {
				t.Fatalf("unexpected stage: want %s got %s", want, got)
			}
			tc.check(t, err)
		})
	}
}

func TestPoliciesOverTheSamePayload(t *testing.T) {
	encoded := blob.Encode([]byte(`{"equipment":{"items":[0,0,99,0,0]},"location":{"x":12,"y":15,"zone":"Starting Area"},"is_admin":true,"gold":50000}`))

	st, err := Permissive(encoded)
	if err != nil {
		t.Fatalf("permissive: %v", err)
	}
	if st.IsAdmin == nil || !*st.IsAdmin || st.Gold == nil || *st.Gold != 50000 {
		t.Fatalf("unexpected permissive state: %+v", st)
	}

	if _, err := Strict(encoded); !errors.Is(err, playerstate.ErrUnknownField) {
		t.Fatalf("strict: expected unknown field, got %v", err)
	}
}
