package docstore

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("FirestoreClient", func() {
	var (
		server *ghttp.Server
		client *FirestoreClient
		ctx    context.Context
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		client = NewFirestoreClient(server.URL()+"/v1/projects/test/databases/(default)/documents", "test-token")
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("GetDocument", func() {
		When("the document exists", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("GET", "/v1/projects/test/databases/(default)/documents/receipts/abc123"),
					ghttp.VerifyHeaderKV("Authorization", "Bearer test-token"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
						"name": "projects/test/databases/(default)/documents/receipts/abc123",
						"fields": map[string]any{
							"rawText": map[string]any{"stringValue": "ストアA"},
							"status":  map[string]any{"stringValue": "processed"},
							"originalFile": map[string]any{"mapValue": map[string]any{
								"fields": map[string]any{
									"name": map[string]any{"stringValue": "receipt.jpg"},
								},
							}},
						},
					}),
				))
			})

			It("decodes the envelope into plain fields", func() {
				doc, err := client.GetDocument(ctx, "receipts", "abc123")
				Expect(err).NotTo(HaveOccurred())
				Expect(doc.ID).To(Equal("abc123"))
				Expect(doc.Fields["rawText"]).To(Equal("ストアA"))
				Expect(doc.Fields["status"]).To(Equal("processed"))
				Expect(doc.Fields["originalFile"]).To(Equal(map[string]any{"name": "receipt.jpg"}))
			})
		})

		When("the document does not exist", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, `{}`))
			})

			It("returns ErrNotFound", func() {
				_, err := client.GetDocument(ctx, "receipts", "missing")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})

		When("the store returns a server error", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, `boom`))
			})

			It("returns the error with the status code", func() {
				_, err := client.GetDocument(ctx, "receipts", "abc123")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("500"))
			})
		})
	})

	Describe("ListDocuments", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/v1/projects/test/databases/(default)/documents/receipts", "orderBy=metadata.updatedAt+desc&pageSize=20"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"documents": []map[string]any{
						{
							"name":   "projects/test/databases/(default)/documents/receipts/newer",
							"fields": map[string]any{"status": map[string]any{"stringValue": "processing"}},
						},
						{
							"name":   "projects/test/databases/(default)/documents/receipts/older",
							"fields": map[string]any{"status": map[string]any{"stringValue": "processed"}},
						},
					},
				}),
			))
		})

		It("passes ordering and page size and decodes every document", func() {
			docs, err := client.ListDocuments(ctx, "receipts", ListOptions{
				OrderBy:    "metadata.updatedAt",
				Descending: true,
				PageSize:   20,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
			Expect(docs[0].ID).To(Equal("newer"))
			Expect(docs[1].ID).To(Equal("older"))
		})
	})

	Describe("CreateDocument", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/v1/projects/test/databases/(default)/documents/processed_receipts"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer test-token"),
				ghttp.VerifyJSONRepresenting(map[string]any{
					"fields": map[string]any{
						"totalExpense": map[string]any{"integerValue": "500"},
					},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"name": "projects/test/databases/(default)/documents/processed_receipts/generated-id",
					"fields": map[string]any{
						"totalExpense": map[string]any{"integerValue": "500"},
					},
				}),
			))
		})

		It("encodes fields through the envelope and returns the assigned ID", func() {
			doc, err := client.CreateDocument(ctx, "processed_receipts", map[string]any{
				"totalExpense": 500,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.ID).To(Equal("generated-id"))
			Expect(doc.Fields["totalExpense"]).To(Equal(int64(500)))
		})
	})

	Describe("UpdateDocument", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("PATCH", "/v1/projects/test/databases/(default)/documents/receipts/abc123", "updateMask.fieldPaths=status"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"name": "projects/test/databases/(default)/documents/receipts/abc123",
					"fields": map[string]any{
						"status": map[string]any{"stringValue": "processed"},
					},
				}),
			))
		})

		It("patches only the listed fields", func() {
			doc, err := client.UpdateDocument(ctx, "receipts", "abc123", map[string]any{
				"status": "processed",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Fields["status"]).To(Equal("processed"))
		})
	})
})
