/*
Package events provides the notification channel connecting the plan engine
to its observers.

The plan coordinator publishes an event whenever a plan's derived status
changes; the top-level scheduler subscribes and re-evaluates offer
suppression. This replaces ambient observer/observable coupling with a single broker the
coordinator owns.

# Delivery semantics

Publishing is non-blocking: events flow through a buffered channel into the
broker's distribution loop, and a subscriber whose buffer is full misses
events rather than stalling the engine. Observers treat events as hints to
re-read authoritative state (plan status, store contents), never as the
state itself, so a missed event is benign.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for event := range sub {
			// react to event.Type
		}
	}()

	broker.Publish(&events.Event{
		Type: events.EventPlanStatusChanged,
		Plan: "deploy",
	})
*/
package events
