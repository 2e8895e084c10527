package blob

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	t.Run("valid padded input", func(t *testing.T) {
		got, err := Decode("eyJhIjoxfQ==")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := `{"a":1}`; string(got) != want {
			t.Fatalf("unexpected bytes: want %q got %q", want, got)
		}
	})

	t.Run("empty input decodes to nothing", func(t *testing.T) {
		got, err := Decode("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected no bytes, got %d", len(got))
		}
	})

	t.Run("round trip", func(t *testing.T) {
		in := []byte{0x00, 0xff, 0x10, 'x', 'y'}
		got, err := Decode(Encode(in))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(got) != string(in) {
			t.Fatalf("round trip mismatch: want %v got %v", in, got)
		}
	})

	cases := []struct {
		name       string
		in         string
		wantOffset int64
	}{
		{name: "character outside alphabet", in: "eyJh*IjoxfQ==", wantOffset: 4},
		{name: "url-safe alphabet rejected", in: "____", wantOffset: 0},
		{name: "missing padding", in: "eyJhIjoxfQ", wantOffset: 8},
		{name: "padding in the middle", in: "ey=hIjox", wantOffset: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.in)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %T (%v)", err, err)
			}
			if want, got := tc.wantOffset, de.Offset; want != got {
				t.Fatalf("unexpected offset: want %d got %d", want, got)
			}
		})
	}
}
