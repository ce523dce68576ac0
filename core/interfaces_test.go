package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestSliceStream(t *testing.T) {
	posts := []PostRecord{{ID: "p1"}, {ID: "p2"}}
	s := NewSliceStream(posts, true)
	ctx := context.Background()

	for _, want := range []string{"p1", "p2"} {
		p, err := s.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if p.ID != want {
			t.Errorf("Next().ID = %q, want %q", p.ID, want)
		}
	}
	if _, err := s.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after end = %v, want io.EOF", err)
	}
	if !s.NewestFirst() {
		t.Error("NewestFirst() = false, want true")
	}
}

func TestSliceStream_CancelledContext(t *testing.T) {
	s := NewSliceStream([]PostRecord{{ID: "p1"}}, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() = %v, want context.Canceled", err)
	}
}

func TestFuncStream_StopsAfterError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	s := NewFuncStream(func(ctx context.Context) (PostRecord, error) {
		calls++
		if calls == 2 {
			return PostRecord{}, boom
		}
		return PostRecord{ID: "p"}, nil
	}, false)

	ctx := context.Background()
	if _, err := s.Next(ctx); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	if _, err := s.Next(ctx); !errors.Is(err, boom) {
		t.Fatalf("second Next() = %v, want boom", err)
	}
	if _, err := s.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("third Next() = %v, want io.EOF", err)
	}
	if calls != 2 {
		t.Errorf("generator called %d times, want 2", calls)
	}
}

func TestNewID(t *testing.T) {
	a := NewID("https://example.blogspot.com/2020/01/post.html")
	b := NewID("https://example.blogspot.com/2020/01/post.html")
	c := NewID("https://example.blogspot.com/2020/02/other.html")

	if a != b {
		t.Errorf("NewID not deterministic: %q != %q", a, b)
	}
	if a == c {
		t.Errorf("NewID collision for different seeds: %q", a)
	}
	if !strings.HasPrefix(a, "id-") || len(a) != len("id-")+32 {
		t.Errorf("NewID() = %q, want id- followed by 32 hex chars", a)
	}
}
