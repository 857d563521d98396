package receipt

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zubora/receipt-pon/internal/docstore"
)

var _ = Describe("Locator", func() {
	var (
		store   *mockStore
		locator *Locator
		now     time.Time
	)

	BeforeEach(func() {
		store = newMockStore()
		locator = NewLocator(store, time.Millisecond, 5)
		now = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	})

	When("a record for the filename already exists", func() {
		BeforeEach(func() {
			store.put(docstore.ReceiptsCollection, receiptDoc("r-1", "receipt.jpg", StatusProcessing, "", now))
		})

		It("returns its ID on the first attempt", func() {
			id, err := locator.Locate(context.Background(), "receipt.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("r-1"))
			Expect(store.listCalls).To(Equal(1))
		})
	})

	When("records for other filenames exist", func() {
		BeforeEach(func() {
			store.put(docstore.ReceiptsCollection, receiptDoc("r-1", "other.jpg", StatusProcessed, "", now))
		})

		It("keeps polling and times out", func() {
			_, err := locator.Locate(context.Background(), "receipt.jpg")
			Expect(err).To(MatchError(ErrLocatorTimeout))
			Expect(store.listCalls).To(Equal(5))
		})
	})

	When("the record appears while polling", func() {
		It("picks it up on a later attempt", func() {
			go func() {
				time.Sleep(2 * time.Millisecond)
				store.put(docstore.ReceiptsCollection, receiptDoc("r-2", "receipt.jpg", StatusProcessing, "", now))
			}()

			id, err := locator.Locate(context.Background(), "receipt.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("r-2"))
		})
	})

	When("listing fails", func() {
		BeforeEach(func() {
			store.listErr = errors.New("store unavailable")
		})

		It("treats the failure as not-found-yet and eventually times out", func() {
			_, err := locator.Locate(context.Background(), "receipt.jpg")
			Expect(err).To(MatchError(ErrLocatorTimeout))
			Expect(store.listCalls).To(Equal(5))
		})
	})

	When("the context is cancelled", func() {
		It("stops with the context error", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := locator.Locate(ctx, "receipt.jpg")
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	It("classifies the timeout as an exhausted poll", func() {
		Expect(errors.Is(ErrLocatorTimeout, ErrExhausted)).To(BeTrue())
	})
})
