// Package gamelog tails the game server's live log file and classifies
// appended lines into typed events for the relay and the verification flow.
package gamelog

import "regexp"

// Event is a classified log line. Concrete types below; produced and
// consumed within one dispatch, never stored.
type Event interface {
	event()
}

// ChatLine is an in-game chat message.
type ChatLine struct {
	Prefix string // rank tag, may be empty
	Sender string
	Body   string
}

// AuctionAdded is a marketplace listing announcement.
type AuctionAdded struct {
	Seller string
	Qty    int
	Item   string
	Price  string // digits only, thousands separators stripped
}

// AuctionSold is a completed marketplace sale.
type AuctionSold struct {
	Buyer  string
	Seller string
	Qty    int
	Item   string
	Price  string
}

// VerifyRequest is a player running the in-game verify command.
type VerifyRequest struct {
	Username string
}

// Unrecognized is a line that carried a known category marker but failed
// its detailed pattern: a format-drift signal, logged rather than dropped.
type Unrecognized struct {
	Raw string
}

func (ChatLine) event()      {}
func (AuctionAdded) event()  {}
func (AuctionSold) event()   {}
func (VerifyRequest) event() {}
func (Unrecognized) event()  {}

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// ValidUsername reports whether s is a well-formed game username. The same
// constraint gates registration input and log-line extraction, so noise in
// unrelated log lines cannot produce bogus identities.
func ValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}
