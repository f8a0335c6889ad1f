package eventbus_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/eventbus"
)

var _ = Describe("Bus", func() {
	It("does not deliver events emitted before Subscribe", func() {
		bus := eventbus.New[int]()
		bus.Emit(1)
		sub := bus.Subscribe()
		defer sub.Close()
		bus.Emit(2)

		ev, ok := sub.Next(50)
		Expect(ok).To(BeTrue())
		Expect(ev).To(Equal(2))
	})

	It("delivers to each subscriber in emission order", func() {
		bus := eventbus.New[string]()
		subA := bus.Subscribe()
		subB := bus.Subscribe()
		defer subA.Close()
		defer subB.Close()

		bus.Emit("a")
		bus.Emit("b")
		bus.Emit("c")

		for _, sub := range []*eventbus.Subscription[string]{subA, subB} {
			for _, want := range []string{"a", "b", "c"} {
				got, ok := sub.Next(50)
				Expect(ok).To(BeTrue())
				Expect(got).To(Equal(want))
			}
		}
	})

	It("Next(0) never blocks and returns false with nothing buffered", func() {
		bus := eventbus.New[int]()
		sub := bus.Subscribe()
		defer sub.Close()

		_, ok := sub.Next(0)
		Expect(ok).To(BeFalse())
	})

	It("stops delivering after Close", func() {
		bus := eventbus.New[int]()
		sub := bus.Subscribe()
		sub.Close()
		bus.Emit(42)

		_, ok := sub.Next(10)
		Expect(ok).To(BeFalse())
	})

	It("drops a subscriber once closed rather than blocking Emit", func() {
		bus := eventbus.New[int]()
		sub := bus.Subscribe()
		sub.Close()

		Expect(bus.SubscriberCount()).To(Equal(0))
		bus.Emit(1) // must not panic or block
	})
})
