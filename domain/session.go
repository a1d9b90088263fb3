package domain

// SessionState is what the feed remembers about one browsing session:
// every identifier already shown, how many pages were served and how deep
// into the catalog the last page had to go.
type SessionState struct {
	ID    string
	Seen  IDSet
	Pages int
	Depth int
}

func (s SessionState) Initial() bool {
	return s.Pages == 0
}
