package dag

import (
	"testing"

	"github.com/pkg/errors"
)

func TestMemo(t *testing.T) {
	var (
		calls int
		fail  = true
		boom  = errors.New("boom")
	)
	m := NewMemo(func(name string) (interface{}, error) {
		calls++
		if name == "flaky" && fail {
			return nil, boom
		}
		return name + "!", nil
	})

	for i := 0; i < 3; i++ {
		got, err := m.Get("a")
		if err != nil {
			t.Fatal(err)
		}
		if got != "a!" {
			t.Errorf("got %v, want a!", got)
		}
	}
	if calls != 1 {
		t.Errorf("got %d calls, want 1", calls)
	}

	if _, err := m.Get("flaky"); !errors.Is(err, boom) {
		t.Errorf("got error %v, want %v", err, boom)
	}
	fail = false
	got, err := m.Get("flaky")
	if err != nil {
		t.Fatal(err)
	}
	if got != "flaky!" {
		t.Errorf("got %v, want flaky!", got)
	}
	if calls != 3 {
		t.Errorf("got %d calls, want 3", calls)
	}

	m.Forget("a")
	if _, err := m.Get("a"); err != nil {
		t.Fatal(err)
	}
	if calls != 4 {
		t.Errorf("got %d calls after Forget, want 4", calls)
	}
}
