package events_test

import (
	"testing"

	"github.com/bitsim/node/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Events(t *testing.T) {
	t.Log("Given the need to fan out events to subscribers.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen two subscribers are registered.", testID)
		{
			evts := events.New()

			ch1 := evts.Acquire("one")
			ch2 := evts.Acquire("two")

			if evts.Acquire("one") != ch1 {
				t.Fatalf("\t%s\tTest %d:\tShould return the same channel for the same id.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould return the same channel for the same id.", success, testID)

			evts.Send("viewer: block: 1")

			for _, ch := range []chan string{ch1, ch2} {
				if msg := <-ch; msg != "viewer: block: 1" {
					t.Fatalf("\t%s\tTest %d:\tShould receive the event: got %q", failed, testID, msg)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould receive the event on every channel.", success, testID)

			if err := evts.Release("one"); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to release a channel: %v", failed, testID, err)
			}
			if _, open := <-ch1; open {
				t.Fatalf("\t%s\tTest %d:\tShould close a released channel.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould close a released channel.", success, testID)

			if err := evts.Release("one"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not release an unknown id.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not release an unknown id.", success, testID)

			evts.Shutdown()
			if evts.Count() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould remove every channel on shutdown.", failed, testID)
			}
			if _, open := <-ch2; open {
				t.Fatalf("\t%s\tTest %d:\tShould close every channel on shutdown.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould close every channel on shutdown.", success, testID)
		}
	}
}

func Test_Topics(t *testing.T) {
	t.Log("Given the need to deliver only the topics a subscriber asked for.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen one subscriber asks for blocks only.", testID)
		{
			evts := events.New()
			defer evts.Shutdown()

			blocks := evts.Acquire("blocks", "block")
			all := evts.Acquire("all")

			evts.Send("viewer: dropped: {}")
			evts.Send("viewer: block: {}")
			evts.Send("state: MineNewBlock: MINING: started")

			if msg := <-blocks; msg != "viewer: block: {}" {
				t.Fatalf("\t%s\tTest %d:\tShould only receive block events, got %q.", failed, testID, msg)
			}
			if len(blocks) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould not receive other topics.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould only receive block events.", success, testID)

			if len(all) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould receive both events without a filter, got %d.", failed, testID, len(all))
			}
			t.Logf("\t%s\tTest %d:\tShould receive both events without a filter.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen parsing event topics.", testID)
		{
			if topic, ok := events.Topic("viewer: block: {\"index\":1}"); !ok || topic != "block" {
				t.Fatalf("\t%s\tTest %d:\tShould parse the topic, got %q.", failed, testID, topic)
			}
			if _, ok := events.Topic("worker: shutdown"); ok {
				t.Fatalf("\t%s\tTest %d:\tShould not treat a log line as an event.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould parse event topics.", success, testID)
		}
	}
}

func Test_SendDoesNotBlock(t *testing.T) {
	evts := events.New()
	evts.Acquire("slow")

	for i := 0; i < 500; i++ {
		evts.Send("viewer: tick")
	}

	if evts.Dropped("slow") != 400 {
		t.Fatalf("Should count the events a slow subscriber missed, got %d.", evts.Dropped("slow"))
	}
}
