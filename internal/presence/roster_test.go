package presence

import (
	"reflect"
	"testing"
)

func TestParseRoster(t *testing.T) {
	tests := []struct {
		name    string
		resp    string
		online  int
		max     int
		players []string
		wantErr bool
	}{
		{
			name:    "structured",
			resp:    "3/20: Alice, Bob, Carl",
			online:  3,
			max:     20,
			players: []string{"Alice", "Bob", "Carl"},
		},
		{
			name:   "structured empty list",
			resp:   "0/20:",
			online: 0,
			max:    20,
		},
		{
			name:    "structured loose spacing",
			resp:    "  2 / 20 :  Bob ,Alice ",
			online:  2,
			max:     20,
			players: []string{"Alice", "Bob"},
		},
		{
			name:    "vanilla",
			resp:    "There are 3 of a max of 20 players online: Steve, Alex, Herobrine",
			online:  3,
			max:     20,
			players: []string{"Alex", "Herobrine", "Steve"},
		},
		{
			name:   "vanilla nobody online",
			resp:   "There are 0 of a max of 20 players online:",
			online: 0,
			max:    20,
		},
		{
			name:    "vanilla case insensitive",
			resp:    "there are 1 of a max of 10 players online: solo",
			online:  1,
			max:     10,
			players: []string{"solo"},
		},
		{
			name:    "duplicates collapsed",
			resp:    "2/20: Alice, Alice, Bob",
			online:  2,
			max:     20,
			players: []string{"Alice", "Bob"},
		},
		{
			name:    "garbage",
			resp:    "Unknown command. Type \"/help\" for help.",
			wantErr: true,
		},
		{
			name:    "empty",
			resp:    "",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseRoster(tt.resp)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRoster(%q) = %+v, want error", tt.resp, r)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRoster(%q): %v", tt.resp, err)
			}
			if r.Online != tt.online || r.Max != tt.max {
				t.Errorf("counts = %d/%d, want %d/%d", r.Online, r.Max, tt.online, tt.max)
			}
			if !reflect.DeepEqual(r.Players, tt.players) {
				t.Errorf("players = %v, want %v", r.Players, tt.players)
			}
		})
	}
}

func TestRosterKeyOrderIndependent(t *testing.T) {
	a, err := ParseRoster("2/20: Alice, Bob")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseRoster("2/20: Bob, Alice")
	if err != nil {
		t.Fatal(err)
	}
	if a.Key() != b.Key() {
		t.Errorf("keys differ for same membership: %q vs %q", a.Key(), b.Key())
	}
}

func TestRosterRender(t *testing.T) {
	r := &Roster{Online: 2, Max: 20, Players: []string{"Alice", "Bob"}}
	if got, want := r.Render(), "🟢 Online 2/20: Alice, Bob"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
	empty := &Roster{Online: 0, Max: 20}
	if got, want := empty.Render(), "🟢 Online 0/20"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}
