package gamelog

import (
	"reflect"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Event
	}{
		{
			name: "auction added",
			line: "Alice added x3 Sword in auction for 1,200.",
			want: AuctionAdded{Seller: "Alice", Qty: 3, Item: "Sword", Price: "1200"},
		},
		{
			name: "auction added with log header",
			line: "[12:34:56] [Server thread/INFO]: Alice added x1 Golden Apple in auction for 950.",
			want: AuctionAdded{Seller: "Alice", Qty: 1, Item: "Golden Apple", Price: "950"},
		},
		{
			name: "auction sold",
			line: "Bob bought x3 Sword from Alice in auction for 1,200.",
			want: AuctionSold{Buyer: "Bob", Qty: 3, Item: "Sword", Seller: "Alice", Price: "1200"},
		},
		{
			name: "chat line",
			line: "[Not Secure] <Alice> hello there",
			want: ChatLine{Sender: "Alice", Body: "hello there"},
		},
		{
			name: "chat line with rank prefix",
			line: "[Not Secure] [Admin] <Alice> hi",
			want: ChatLine{Prefix: "Admin", Sender: "Alice", Body: "hi"},
		},
		{
			name: "verify request",
			line: "[12:34:56] [Server thread/INFO]: Alice issued server command: /verify",
			want: VerifyRequest{Username: "Alice"},
		},
		{
			name: "unrelated line",
			line: "[12:34:56] [Server thread/INFO]: Preparing spawn area: 85%",
			want: nil,
		},
		{
			name: "auction marker with drifted format",
			line: "something odd in auction for you",
			want: Unrecognized{Raw: "something odd in auction for you"},
		},
		{
			name: "chat marker with too-short username",
			line: "[Not Secure] <Al> hey",
			want: Unrecognized{Raw: "[Not Secure] <Al> hey"},
		},
		{
			name: "verify with malformed username",
			line: "ThisNameIsWayTooLongForMinecraft issued server command: /verify",
			want: Unrecognized{Raw: "ThisNameIsWayTooLongForMinecraft issued server command: /verify"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Classify(%q) = %#v, want %#v", tt.line, got, tt.want)
			}
		})
	}
}

func TestClassifyPriority(t *testing.T) {
	// A sold line also matches the "in auction for" marker that the added
	// pattern keys on; sold must win.
	line := "Bob bought x1 Dirt from Alice in auction for 5."
	if _, ok := Classify(line).(AuctionSold); !ok {
		t.Fatalf("expected AuctionSold, got %#v", Classify(line))
	}
}

func TestValidUsername(t *testing.T) {
	valid := []string{"abc", "Alice", "a_b_c", "Player123", "sixteen_chars_xx"}
	invalid := []string{"", "ab", "seventeen_chars_x", "bad name", "bad-name", "Алиса"}

	for _, u := range valid {
		if !ValidUsername(u) {
			t.Errorf("ValidUsername(%q) = false, want true", u)
		}
	}
	for _, u := range invalid {
		if ValidUsername(u) {
			t.Errorf("ValidUsername(%q) = true, want false", u)
		}
	}
}

func TestClassifierDispatch(t *testing.T) {
	c := NewClassifier()
	var got []Event
	c.Subscribe(func(ev Event) { got = append(got, ev) })

	c.HandleLine("[Not Secure] <Alice> one")
	c.HandleLine("noise that matches nothing")
	c.HandleLine("[Not Secure] <Bob> two")

	if len(got) != 2 {
		t.Fatalf("dispatched %d events, want 2", len(got))
	}
	if got[0].(ChatLine).Body != "one" || got[1].(ChatLine).Body != "two" {
		t.Errorf("events out of order: %#v", got)
	}
}

func TestRing(t *testing.T) {
	r := NewRing(3)
	r.Add(ChatLine{Sender: "a", Body: "1"})
	r.Add(ChatLine{Sender: "a", Body: "2"})
	r.Add(ChatLine{Sender: "a", Body: "3"})
	r.Add(ChatLine{Sender: "a", Body: "4"}) // evicts "1"

	recent := r.Recent()
	if len(recent) != 3 {
		t.Fatalf("got %d entries, want 3", len(recent))
	}
	if recent[0].Summary != "<a> 4" || recent[2].Summary != "<a> 2" {
		t.Errorf("unexpected order: %v", recent)
	}
}
