package events_test

import (
	"testing"

	"github.com/ekehi/blockchain/foundation/events"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_SendReceive(t *testing.T) {
	t.Log("Given the need to fan events out to subscribers.")
	{
		evts := events.New()

		ch1 := evts.Acquire("sub1")
		ch2 := evts.Acquire("sub2")

		evts.Send("block accepted")

		for i, ch := range []chan string{ch1, ch2} {
			select {
			case msg := <-ch:
				if msg != "block accepted" {
					t.Errorf("\t%s\tTest 0:\tShould deliver the message to subscriber %d.", failed, i)
				} else {
					t.Logf("\t%s\tTest 0:\tShould deliver the message to subscriber %d.", success, i)
				}
			default:
				t.Errorf("\t%s\tTest 0:\tShould have a message queued for subscriber %d.", failed, i)
			}
		}

		if err := evts.Release("sub1"); err != nil {
			t.Errorf("\t%s\tTest 0:\tShould be able to release a subscriber: %v", failed, err)
		} else {
			t.Logf("\t%s\tTest 0:\tShould be able to release a subscriber.", success)
		}

		if err := evts.Release("sub1"); err == nil {
			t.Errorf("\t%s\tTest 0:\tShould reject a double release.", failed)
		} else {
			t.Logf("\t%s\tTest 0:\tShould reject a double release.", success)
		}

		// A full subscriber must not block the sender.
		for i := 0; i < 200; i++ {
			evts.Send("burst")
		}
		t.Logf("\t%s\tTest 0:\tShould not block on a full subscriber.", success)

		evts.Shutdown()

		// Drain what was buffered; the channel must end up closed.
		open := true
		for open {
			_, open = <-ch2
		}
		t.Logf("\t%s\tTest 0:\tShould close channels on shutdown.", success)
	}
}
