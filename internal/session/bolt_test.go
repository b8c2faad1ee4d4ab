package session

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/idrea/receipt-bot/internal/draft"
)

var _ = Describe("BoltStore", func() {
	var (
		store  *BoltStore
		userID string
	)

	BeforeEach(func() {
		var err error
		store, err = NewBoltStore(filepath.Join(GinkgoT().TempDir(), "sessions.db"))
		Expect(err).NotTo(HaveOccurred())
		userID = "+34600000001"
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	Describe("Get", func() {
		When("the user has no draft", func() {
			It("returns ErrNotFound", func() {
				_, err := store.Get(userID)
				Expect(err).To(MatchError(ErrNotFound))
			})
		})

		When("the user has a draft", func() {
			var saved *draft.ReceiptDraft

			BeforeEach(func() {
				saved = draft.New(userID, time.Now())
				Expect(saved.Set(draft.FieldStore, "Acme")).To(Succeed())
				Expect(store.Put(userID, saved)).To(Succeed())
			})

			It("returns the stored draft", func() {
				got, err := store.Get(userID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.UserID).To(Equal(userID))
				Expect(got.AttemptID).To(Equal(saved.AttemptID))
				Expect(got.Fields[draft.FieldStore]).To(Equal("Acme"))
			})
		})
	})

	Describe("Put", func() {
		It("replaces an existing draft for the same user", func() {
			first := draft.New(userID, time.Now())
			second := draft.New(userID, time.Now())
			Expect(store.Put(userID, first)).To(Succeed())
			Expect(store.Put(userID, second)).To(Succeed())

			got, err := store.Get(userID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.AttemptID).To(Equal(second.AttemptID))
		})

		It("keeps drafts for different users separate", func() {
			other := "+34600000002"
			Expect(store.Put(userID, draft.New(userID, time.Now()))).To(Succeed())
			Expect(store.Put(other, draft.New(other, time.Now()))).To(Succeed())

			got, err := store.Get(other)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.UserID).To(Equal(other))
		})
	})

	Describe("Delete", func() {
		It("removes the draft", func() {
			Expect(store.Put(userID, draft.New(userID, time.Now()))).To(Succeed())
			Expect(store.Delete(userID)).To(Succeed())

			_, err := store.Get(userID)
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("is a no-op for a user with no draft", func() {
			Expect(store.Delete(userID)).To(Succeed())
		})
	})

	Describe("EvictIdle", func() {
		var (
			stale *draft.ReceiptDraft
			fresh *draft.ReceiptDraft
		)

		BeforeEach(func() {
			stale = draft.New(userID, time.Now().Add(-time.Hour))
			fresh = draft.New("+34600000002", time.Now())
			Expect(store.Put(stale.UserID, stale)).To(Succeed())
			Expect(store.Put(fresh.UserID, fresh)).To(Succeed())
		})

		It("removes only drafts older than the cutoff", func() {
			n, err := store.EvictIdle(30 * time.Minute)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			_, err = store.Get(stale.UserID)
			Expect(err).To(MatchError(ErrNotFound))

			_, err = store.Get(fresh.UserID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("reports zero when nothing is stale", func() {
			n, err := store.EvictIdle(2 * time.Hour)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})
	})

	Describe("durability", func() {
		It("survives a close and reopen", func() {
			path := filepath.Join(GinkgoT().TempDir(), "durable.db")
			first, err := NewBoltStore(path)
			Expect(err).NotTo(HaveOccurred())

			d := draft.New(userID, time.Now())
			Expect(first.Put(userID, d)).To(Succeed())
			Expect(first.Close()).To(Succeed())

			second, err := NewBoltStore(path)
			Expect(err).NotTo(HaveOccurred())
			defer second.Close()

			got, err := second.Get(userID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.AttemptID).To(Equal(d.AttemptID))
		})
	})
})
