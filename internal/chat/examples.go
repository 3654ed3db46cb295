package chat

// Greeting opens a new conversation in interactive front-ends.
const Greeting = "Hello! 👋 I'm your blood donation assistant. Ask me anything about blood donation events in Malaysia!"

var examples = []string{
	"How many events are happening today?",
	"Show me blood donation events in Bangi this week",
	"What events are organized by KIPMALL?",
	"Total donor target for KEMPEN DERMA DARAH",
	"Events happening this weekend",
	"Show all events in December 2025",
	"Ada acara derma darah di Kuantan bulan depan?",
}

// Examples returns sample questions for front-ends to offer.
func Examples() []string {
	out := make([]string, len(examples))
	copy(out, examples)
	return out
}
