package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/idrea/receipt-bot/internal/draft"
)

var _ = Describe("parseFields", func() {
	var (
		text   string
		fields draft.Fields
		err    error
	)

	JustBeforeEach(func() {
		fields, err = parseFields(text)
	})

	When("the response is clean JSON", func() {
		BeforeEach(func() {
			text = `{"what": "Office supplies", "amount": "50", "store_name": "Acme"}`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("maps the model's names to canonical fields", func() {
			Expect(fields).To(Equal(draft.Fields{
				draft.FieldWhat:   "Office supplies",
				draft.FieldAmount: "50",
				draft.FieldStore:  "Acme",
			}))
		})
	})

	When("the response is wrapped in a markdown code block", func() {
		BeforeEach(func() {
			text = "```json\n{\"what\": \"Lunch\", \"amount\": \"12.30\"}\n```"
		})

		It("still parses", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(fields[draft.FieldWhat]).To(Equal("Lunch"))
		})
	})

	When("the model adds prose around the JSON", func() {
		BeforeEach(func() {
			text = `Here is the extraction: {"store_name": "Acme"} hope that helps`
		})

		It("keeps only the JSON object", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(fields).To(Equal(draft.Fields{draft.FieldStore: "Acme"}))
		})
	})

	When("amounts come back as JSON numbers", func() {
		BeforeEach(func() {
			text = `{"amount": 42.5, "iva": 7}`
		})

		It("converts them to normalized strings", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(fields[draft.FieldAmount]).To(Equal("42.5"))
			Expect(fields[draft.FieldVAT]).To(Equal("7"))
		})
	})

	When("amounts carry currency symbols", func() {
		BeforeEach(func() {
			text = `{"amount": "42,50 €"}`
		})

		It("normalizes them", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(fields[draft.FieldAmount]).To(Equal("42.5"))
		})
	})

	When("an amount is not numeric", func() {
		BeforeEach(func() {
			text = `{"amount": "unknown", "what": "Lunch"}`
		})

		It("leaves the amount unset instead of storing garbage", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(fields).NotTo(HaveKey(draft.FieldAmount))
			Expect(fields[draft.FieldWhat]).To(Equal("Lunch"))
		})
	})

	When("the model uses display-style field names", func() {
		BeforeEach(func() {
			text = `{"Store Name": "Acme", "Total Amount": "50", "IVA": "5"}`
		})

		It("normalizes the names", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(fields).To(HaveKey(draft.FieldStore))
			Expect(fields).To(HaveKey(draft.FieldAmount))
			Expect(fields).To(HaveKey(draft.FieldVAT))
		})
	})

	When("the model invents an extra field", func() {
		BeforeEach(func() {
			text = `{"what": "Lunch", "confidence": "high"}`
		})

		It("drops the unrecognized field", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(fields).To(HaveLen(1))
		})
	})

	When("fields are empty strings", func() {
		BeforeEach(func() {
			text = `{"what": "Lunch", "comments": "", "store_name": "  "}`
		})

		It("treats them as unset", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(fields).To(Equal(draft.Fields{draft.FieldWhat: "Lunch"}))
		})
	})

	When("there is no JSON at all", func() {
		BeforeEach(func() {
			text = "I could not read this receipt."
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("no JSON object"))
		})
	})

	When("the JSON is malformed", func() {
		BeforeEach(func() {
			text = `{"what": "Lunch",}`
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})
