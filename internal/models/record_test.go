package models

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var owner = User{ID: "P22001", Name: "田中"}

func TestNewStudyRecord(t *testing.T) {
	now := time.Date(2026, 2, 3, 9, 30, 15, 0, time.UTC)

	t.Run("fills stored and derived fields", func(t *testing.T) {
		r, err := NewStudyRecord(42, owner, "人体", 7, 5, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.ID != 42 || r.OwnerID != "P22001" || r.OwnerName != "田中" {
			t.Errorf("identity fields wrong: %+v", r)
		}
		if r.Rate != 71 {
			t.Errorf("rate = %d, want 71", r.Rate)
		}
		if r.Date != "2026/02/03" || r.Time != "09:30:15" {
			t.Errorf("display fields = %q %q", r.Date, r.Time)
		}
		if r.Timestamp != "2026-02-03T09:30:15.000Z" {
			t.Errorf("timestamp = %q", r.Timestamp)
		}
	})

	t.Run("zero attempts is valid with rate zero", func(t *testing.T) {
		r, err := NewStudyRecord(1, owner, "人体", 0, 0, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Rate != 0 {
			t.Errorf("rate = %d, want 0", r.Rate)
		}
	})

	rejections := []struct {
		name               string
		field              string
		attempted, correct int
	}{
		{"empty field", "", 10, 5},
		{"blank field", "   ", 10, 5},
		{"negative attempted", "人体", -1, 0},
		{"negative correct", "人体", 5, -1},
		{"correct exceeds attempted", "人体", 10, 12},
	}
	for _, tc := range rejections {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewStudyRecord(1, owner, tc.field, tc.attempted, tc.correct, now)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestIDAllocatorSameMillisecond(t *testing.T) {
	var alloc IDAllocator
	now := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)

	a := alloc.Next(now)
	b := alloc.Next(now) // same millisecond
	c := alloc.Next(now.Add(-time.Second)) // clock stepped back

	if a >= b || b >= c {
		t.Errorf("ids not strictly increasing: %d, %d, %d", a, b, c)
	}
	if a != now.UnixMilli()*1000 {
		t.Errorf("first id = %d, want %d", a, now.UnixMilli()*1000)
	}
}

func TestIDAllocatorConcurrent(t *testing.T) {
	var alloc IDAllocator
	const n = 200

	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- alloc.Next(time.Now())
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}
