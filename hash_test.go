package dag

import (
	"testing"
	"testing/quick"

	"github.com/pkg/errors"
)

func TestHashValid(t *testing.T) {
	long := make([]byte, MaxHashLen+1)
	for i := range long {
		long[i] = 'a'
	}

	cases := []struct {
		h    Hash
		want bool
	}{
		{h: "", want: false},
		{h: "0", want: true},
		{h: "0123456789abcdefghijklmnopqrstuv", want: true},
		{h: "w", want: false},
		{h: "ABC", want: false},
		{h: "a/b", want: false},
		{h: Hash(long[:MaxHashLen]), want: true},
		{h: Hash(long), want: false},
	}
	for _, c := range cases {
		if got := c.h.Valid(); got != c.want {
			t.Errorf("Valid(%q) = %v, want %v", c.h, got, c.want)
		}
	}

	_, err := ParseHash("nope!")
	var herr *HashError
	if !errors.As(err, &herr) {
		t.Errorf("got error %v, want *HashError", err)
	}
}

func TestHashFuncs(t *testing.T) {
	for name, fn := range map[string]HashFunc{"blake3": Blake3, "sha256": SHA256} {
		t.Run(name, func(t *testing.T) {
			f := func(a, b []byte) bool {
				ha, hb := fn(a), fn(b)
				if !ha.Valid() || !hb.Valid() {
					return false
				}
				return (ha == hb) == (string(a) == string(b))
			}
			if err := quick.Check(f, nil); err != nil {
				t.Error(err)
			}
		})
	}

	if got := Blake3(nil); len(got) != 32 {
		t.Errorf("got blake3 hash length %d, want 32", len(got))
	}
	const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := SHA256(nil); got != emptySHA256 {
		t.Errorf("got %s, want %s", got, emptySHA256)
	}
}

func TestFakeHasher(t *testing.T) {
	f1, f2 := NewFakeHasher(), NewFakeHasher()

	want := []Hash{
		"face0000000000000000000000000001",
		"face0000000000000000000000000002",
		"face0000000000000000000000000003",
	}
	for i, w := range want {
		got := f1([]byte("same"))
		if got != w {
			t.Errorf("call %d: got %s, want %s", i+1, got, w)
		}
		if !got.Valid() {
			t.Errorf("fake hash %s is not valid", got)
		}
	}

	if got := f2(nil); got != want[0] {
		t.Errorf("second hasher: got %s, want %s", got, want[0])
	}
}
