package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/slot"
)

func TestSessionStore_LoadSaveDelete(t *testing.T) {
	s := NewSessionStore(newMapCache(), time.Hour)
	ctx := context.Background()

	st, err := s.Load(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if st.SessionID != "s1" || st.Stage != conversation.StageIdle {
		t.Fatalf("fresh state = %+v", st)
	}

	slots := slot.NewState(intent.ServiceBooking, "restaurant")
	slots.Merge(map[string]string{slot.PartySize: "4"})
	st.StartCollecting(slots)
	st.AppendTurn(conversation.RoleUser, "table for 4", testNow)
	if err := s.Save(ctx, st); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Stage != conversation.StageCollecting || got.ActiveIntent != intent.ServiceBooking {
		t.Fatalf("loaded %+v", got)
	}
	if got.Slots == nil || got.Slots.Values[slot.PartySize] != "4" || len(got.Turns) != 1 {
		t.Fatalf("slots or turns lost: %+v", got)
	}

	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Load(ctx, "s1")
	if got.Stage != conversation.StageIdle || got.Slots != nil {
		t.Fatalf("deleted session still loaded: %+v", got)
	}
}

func TestSessionStore_LockSerializesSession(t *testing.T) {
	s := NewSessionStore(newMapCache(), time.Hour)
	ctx := context.Background()

	release, err := s.Lock(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}

	acquired := make(chan func())
	go func() {
		r, err := s.Lock(ctx, "s1")
		if err != nil {
			t.Error(err)
			close(acquired)
			return
		}
		acquired <- r
	}()

	other, err := s.Lock(ctx, "s2")
	if err != nil {
		t.Fatalf("other session blocked: %v", err)
	}
	other()

	select {
	case <-acquired:
		t.Fatal("second turn ran while the first held the lock")
	case <-time.After(30 * time.Millisecond):
	}

	release()
	select {
	case r := <-acquired:
		if r == nil {
			t.Fatal("second lock failed")
		}
		r()
	case <-time.After(2 * time.Second):
		t.Fatal("second turn never acquired the lock")
	}

	s.mu.Lock()
	n := len(s.locks)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("%d session locks leaked", n)
	}
}

func TestSessionStore_LockHonorsContext(t *testing.T) {
	s := NewSessionStore(newMapCache(), time.Hour)
	release, err := s.Lock(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Lock(ctx, "s1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	release()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		n := len(s.locks)
		s.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("abandoned lock was never handed back")
		}
		time.Sleep(time.Millisecond)
	}

	r, err := s.Lock(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	r()
}
