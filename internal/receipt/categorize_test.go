package receipt

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zubora/receipt-pon/internal/docstore"
)

var _ = Describe("Totals", func() {
	It("sums prices per category", func() {
		expense, personal := Totals([]LineItem{
			{ID: "item-0", Name: "コーヒー", Price: 500, Category: CategoryExpense},
			{ID: "item-1", Name: "文具", Price: 1200, Category: CategoryExpense},
			{ID: "item-2", Name: "お菓子", Price: 300, Category: CategoryPersonal},
		})
		Expect(expense).To(Equal(1700))
		Expect(personal).To(Equal(300))
	})

	It("ignores unclassified items", func() {
		expense, personal := Totals([]LineItem{
			{ID: "item-0", Price: 500, Category: CategoryUnclassified},
		})
		Expect(expense).To(Equal(0))
		Expect(personal).To(Equal(0))
	})

	It("is zero for an empty list", func() {
		expense, personal := Totals(nil)
		Expect(expense).To(Equal(0))
		Expect(personal).To(Equal(0))
	})
})

var _ = Describe("Categorizer", func() {
	var (
		store       *mockStore
		timeSrc     *fixedTimeSource
		categorizer *Categorizer
		parsed      *ParsedReceipt
		items       []LineItem
	)

	BeforeEach(func() {
		store = newMockStore()
		timeSrc = &fixedTimeSource{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
		categorizer = NewCategorizer(store, timeSrc)
		parsed = &ParsedReceipt{
			StoreName:       "ストアA",
			TransactionDate: "2024/5/1",
			TotalAmount:     1700,
		}
		items = []LineItem{
			{ID: "item-0", Name: "コーヒー", Price: 500, Category: CategoryExpense},
			{ID: "item-1", Name: "文具", Price: 1200, Category: CategoryPersonal},
		}
	})

	Describe("Finalize", func() {
		When("every item is classified", func() {
			var processed *ProcessedReceipt

			JustBeforeEach(func() {
				var err error
				processed, err = categorizer.Finalize(context.Background(), parsed, "r-1", items)
				Expect(err).NotTo(HaveOccurred())
			})

			It("derives the record from the parse and the review", func() {
				Expect(processed.OriginalReceiptID).To(Equal("r-1"))
				Expect(processed.StoreName).To(Equal("ストアA"))
				Expect(processed.TransactionDate).To(Equal("2024/5/1"))
				Expect(processed.Items).To(Equal(items))
				Expect(processed.TotalExpense).To(Equal(500))
				Expect(processed.TotalPersonal).To(Equal(1200))
				Expect(processed.ProcessedAt).To(Equal(timeSrc.now))
			})

			It("carries the store-assigned ID", func() {
				Expect(processed.ID).To(Equal("doc-1"))
			})

			It("persists exactly one document", func() {
				Expect(store.created).To(Equal(1))
				doc, err := store.GetDocument(context.Background(), docstore.ProcessedReceiptsCollection, processed.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(ProcessedFromDocument(doc).TotalExpense).To(Equal(500))
			})
		})

		When("an item is still unclassified", func() {
			BeforeEach(func() {
				items[1].Category = CategoryUnclassified
			})

			It("rejects the receipt without writing", func() {
				_, err := categorizer.Finalize(context.Background(), parsed, "r-1", items)
				Expect(err).To(MatchError(ErrUnclassifiedItem))
				Expect(store.created).To(Equal(0))
			})
		})

		When("the item list is empty", func() {
			It("rejects the receipt", func() {
				_, err := categorizer.Finalize(context.Background(), parsed, "r-1", nil)
				Expect(err).To(HaveOccurred())
				Expect(store.created).To(Equal(0))
			})
		})

		When("the store write fails", func() {
			BeforeEach(func() {
				store.createErr = errors.New("store unavailable")
			})

			It("propagates the error so the caller can retry", func() {
				_, err := categorizer.Finalize(context.Background(), parsed, "r-1", items)
				Expect(err).To(MatchError(store.createErr))
			})
		})
	})
})
