package ratelimit_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/oibchat/oib/pkg/ratelimit"
)

var _ = Describe("FixedWindow", func() {
	var (
		ctx     context.Context
		now     time.Time
		limiter *ratelimit.FixedWindow
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		limiter = ratelimit.NewFixedWindow(10, 60*time.Second,
			ratelimit.WithClock(func() time.Time { return now }))
	})

	allow := func(key string) bool {
		ok, err := limiter.Allow(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		return ok
	}

	Describe("Allow", func() {
		It("admits the first request for a key", func() {
			Expect(allow("1.2.3.4")).To(BeTrue())
		})

		It("admits exactly the ceiling within one window", func() {
			for i := 0; i < 10; i++ {
				Expect(allow("1.2.3.4")).To(BeTrue(), "request %d", i+1)
			}
			Expect(allow("1.2.3.4")).To(BeFalse(), "request 11 must be rejected")
		})

		It("keeps rejecting until the window elapses", func() {
			for i := 0; i < 10; i++ {
				allow("1.2.3.4")
			}
			now = now.Add(30 * time.Second)
			Expect(allow("1.2.3.4")).To(BeFalse())
		})

		It("resets the quota after the window elapses", func() {
			for i := 0; i < 10; i++ {
				allow("1.2.3.4")
			}
			now = now.Add(61 * time.Second)
			Expect(allow("1.2.3.4")).To(BeTrue())
		})

		It("tracks keys independently", func() {
			for i := 0; i < 10; i++ {
				allow("1.2.3.4")
			}
			Expect(allow("1.2.3.4")).To(BeFalse())
			Expect(allow("5.6.7.8")).To(BeTrue())
		})

		It("admits at most twice the ceiling across a window boundary", func() {
			// Fixed-window boundary burst: quota just before reset plus a
			// fresh quota just after. Documented imprecision of the scheme.
			for i := 0; i < 10; i++ {
				Expect(allow("1.2.3.4")).To(BeTrue())
			}
			now = now.Add(61 * time.Second)
			for i := 0; i < 10; i++ {
				Expect(allow("1.2.3.4")).To(BeTrue())
			}
			Expect(allow("1.2.3.4")).To(BeFalse())
		})

		It("never exceeds the ceiling under concurrent callers", func() {
			limiter = ratelimit.NewFixedWindow(10, 60*time.Second)

			var wg sync.WaitGroup
			var mu sync.Mutex
			admitted := 0

			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := limiter.Allow(ctx, "shared")
					Expect(err).NotTo(HaveOccurred())
					if ok {
						mu.Lock()
						admitted++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Expect(admitted).To(Equal(10))
		})
	})

	Describe("Sweep", func() {
		It("drops expired entries without disturbing live ones", func() {
			for i := 0; i < 10; i++ {
				allow("stale")
			}
			now = now.Add(61 * time.Second)
			allow("fresh")

			limiter.Sweep()

			// A swept key starts a fresh window.
			Expect(allow("stale")).To(BeTrue())
			// A live key keeps its count.
			for i := 0; i < 9; i++ {
				Expect(allow("fresh")).To(BeTrue())
			}
			Expect(allow("fresh")).To(BeFalse())
		})
	})

	Describe("many keys", func() {
		It("handles a large keyspace", func() {
			for i := 0; i < 1000; i++ {
				Expect(allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256))).To(BeTrue())
			}
		})
	})
})
