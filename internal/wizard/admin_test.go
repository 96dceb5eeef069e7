package wizard

import (
	"context"
	"strings"
	"testing"
)

func TestGroupSetFlow(t *testing.T) {
	st := newTestStore(t)
	e := NewEngine(st)
	gs := NewGroupSet(st)
	gs.Attach(e)

	if err := st.LinkIdentity(200, "Steve"); err != nil {
		t.Fatal(err)
	}
	if err := st.AddRankGroup("vip", true); err != nil {
		t.Fatal(err)
	}

	var replies []string
	reply := func(s string) { replies = append(replies, s) }
	ctx := context.Background()

	if err := gs.Start(e, 1, reply); err != nil {
		t.Fatal(err)
	}

	// An id with no identity link re-prompts instead of advancing.
	e.HandleMessage(ctx, 1, "999", reply)
	if ws, _ := e.Get(1); ws.Step != "actor" {
		t.Fatalf("step = %s after unlinked id, want actor", ws.Step)
	}

	e.HandleMessage(ctx, 1, "200", reply)
	e.HandleMessage(ctx, 1, "VIP", reply)

	if ws, _ := e.Get(1); ws != nil {
		t.Error("wizard state survived a completed group assignment")
	}
	id, err := st.GameIdentity(200)
	if err != nil {
		t.Fatal(err)
	}
	if id.RankGroup != "vip" {
		t.Errorf("rank group = %q, want vip (lowercased)", id.RankGroup)
	}

	// The assigned group is part of the unlimited-chat set.
	groups, err := st.UnlimitedGroups()
	if err != nil {
		t.Fatal(err)
	}
	if !groups[id.RankGroup] {
		t.Errorf("group %q not in unlimited set %v", id.RankGroup, groups)
	}
}

func TestGroupSetClearsMembership(t *testing.T) {
	st := newTestStore(t)
	e := NewEngine(st)
	gs := NewGroupSet(st)
	gs.Attach(e)

	if err := st.LinkIdentity(200, "Steve"); err != nil {
		t.Fatal(err)
	}
	if err := st.SetRankGroup(200, "vip"); err != nil {
		t.Fatal(err)
	}

	var replies []string
	reply := func(s string) { replies = append(replies, s) }
	ctx := context.Background()

	gs.Start(e, 1, reply)
	e.HandleMessage(ctx, 1, "200", reply)
	e.HandleMessage(ctx, 1, "-", reply)

	id, err := st.GameIdentity(200)
	if err != nil {
		t.Fatal(err)
	}
	if id.RankGroup != "" {
		t.Errorf("rank group = %q, want cleared", id.RankGroup)
	}
	if !strings.Contains(replies[len(replies)-1], "no longer") {
		t.Errorf("final reply = %q", replies[len(replies)-1])
	}
}
