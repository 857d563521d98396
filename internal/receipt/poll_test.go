package receipt

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Poll", func() {
	var (
		ctx         context.Context
		interval    time.Duration
		maxAttempts int
		attempts    int
		probe       Probe
		pollErr     error
	)

	BeforeEach(func() {
		ctx = context.Background()
		interval = time.Millisecond
		maxAttempts = 5
		attempts = 0
	})

	JustBeforeEach(func() {
		pollErr = Poll(ctx, interval, maxAttempts, probe)
	})

	When("the probe succeeds on a later attempt", func() {
		BeforeEach(func() {
			probe = func(context.Context) (bool, error) {
				attempts++
				return attempts == 3, nil
			}
		})

		It("returns nil", func() {
			Expect(pollErr).NotTo(HaveOccurred())
		})

		It("stops probing once done", func() {
			Expect(attempts).To(Equal(3))
		})
	})

	When("the probe succeeds immediately", func() {
		BeforeEach(func() {
			probe = func(context.Context) (bool, error) {
				attempts++
				return true, nil
			}
		})

		It("runs exactly one attempt without waiting an interval first", func() {
			Expect(attempts).To(Equal(1))
			Expect(pollErr).NotTo(HaveOccurred())
		})
	})

	When("the probe never reports done", func() {
		BeforeEach(func() {
			probe = func(context.Context) (bool, error) {
				attempts++
				return false, nil
			}
		})

		It("gives up with ErrExhausted after exactly maxAttempts attempts", func() {
			Expect(pollErr).To(MatchError(ErrExhausted))
			Expect(attempts).To(Equal(maxAttempts))
		})
	})

	When("the probe fails", func() {
		var probeErr error

		BeforeEach(func() {
			probeErr = errors.New("probe exploded")
			probe = func(context.Context) (bool, error) {
				attempts++
				return false, probeErr
			}
		})

		It("aborts on the first failure", func() {
			Expect(pollErr).To(MatchError(probeErr))
			Expect(attempts).To(Equal(1))
		})
	})

	When("the context is already cancelled", func() {
		BeforeEach(func() {
			cancelled, cancel := context.WithCancel(context.Background())
			cancel()
			ctx = cancelled
			probe = func(context.Context) (bool, error) {
				attempts++
				return false, nil
			}
		})

		It("returns the context error without probing", func() {
			Expect(pollErr).To(MatchError(context.Canceled))
			Expect(attempts).To(Equal(0))
		})
	})

	When("the context is cancelled between attempts", func() {
		var cancel context.CancelFunc

		BeforeEach(func() {
			ctx, cancel = context.WithCancel(context.Background())
			interval = time.Hour
			probe = func(context.Context) (bool, error) {
				attempts++
				cancel()
				return false, nil
			}
		})

		It("returns promptly instead of sleeping out the interval", func() {
			Expect(pollErr).To(MatchError(context.Canceled))
			Expect(attempts).To(Equal(1))
		})
	})
})

var _ = Describe("Supervisor", func() {
	var supervisor *Supervisor

	BeforeEach(func() {
		supervisor = NewSupervisor()
	})

	AfterEach(func() {
		supervisor.CancelAll()
	})

	It("runs a task to completion", func() {
		ran := make(chan struct{})
		supervisor.Go("key", func(context.Context) {
			close(ran)
		})
		Eventually(ran).Should(BeClosed())
	})

	It("cancels the previous task for the same key before starting the next", func() {
		var (
			mu    sync.Mutex
			order []string
		)
		record := func(event string) {
			mu.Lock()
			order = append(order, event)
			mu.Unlock()
		}

		supervisor.Go("key", func(ctx context.Context) {
			<-ctx.Done()
			record("first cancelled")
		})
		supervisor.Go("key", func(context.Context) {
			record("second started")
		})

		Eventually(func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), order...)
		}).Should(Equal([]string{"first cancelled", "second started"}))
	})

	It("keeps tasks under different keys independent", func() {
		firstCancelled := make(chan struct{})
		supervisor.Go("a", func(ctx context.Context) {
			<-ctx.Done()
			close(firstCancelled)
		})
		supervisor.Go("b", func(context.Context) {})

		Consistently(firstCancelled).ShouldNot(BeClosed())
	})

	It("Cancel stops the task and waits for it to finish", func() {
		finished := make(chan struct{})
		supervisor.Go("key", func(ctx context.Context) {
			<-ctx.Done()
			close(finished)
		})

		supervisor.Cancel("key")
		Expect(finished).To(BeClosed())
	})

	It("Cancel of an unknown key is a no-op", func() {
		supervisor.Cancel("missing")
	})

	It("CancelAll stops every running task", func() {
		var finished sync.WaitGroup
		finished.Add(2)
		for _, key := range []string{"a", "b"} {
			supervisor.Go(key, func(ctx context.Context) {
				<-ctx.Done()
				finished.Done()
			})
		}

		done := make(chan struct{})
		go func() {
			finished.Wait()
			close(done)
		}()

		supervisor.CancelAll()
		Eventually(done).Should(BeClosed())
	})
})
