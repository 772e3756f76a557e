package notify

import "testing"

// Only the nil-Publisher path of Dispatch is exercised here; a non-nil
// Publisher reaches the real natsutil.NatsJetstreamPublish call, which
// requires a live NATS connection established elsewhere in the process
// lifecycle.

func TestNilPublisherDispatchIsANoOp(t *testing.T) {
	var p *Publisher
	p.Dispatch(1, EventSubmitted, nil)
}

func TestEventConstantsAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, event := range []string{EventSubmitted, EventConfirmed, EventRejected} {
		if seen[event] {
			t.Fatalf("duplicate event constant: %s", event)
		}
		seen[event] = true
	}
}
