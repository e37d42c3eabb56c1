package testutils

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/documents"
	"github.com/papercomputeco/folio/pkg/vector"
)

// NewTestDocument creates a valid document for the given course and type.
func NewTestDocument(title, course, docType string) documents.Document {
	return documents.Document{
		Title:      title,
		CourseCode: course,
		Type:       docType,
	}
}

// DocumentStoreConformance registers the behavioral specs every
// documents.Store driver must satisfy.
func DocumentStoreConformance(newStore func() documents.Store) {
	var (
		store documents.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		store = newStore()
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("creates and finds a document by id", func() {
		created, err := store.Create(ctx, documents.Document{
			Title:      "Lecture 1",
			CourseCode: "CS101",
			Type:       "slides",
			StorageURL: "https://files.example/l1.pdf",
			OwnerID:    "prof-1",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(created.ID).NotTo(BeEmpty())
		Expect(created.CreatedAt.IsZero()).To(BeFalse())

		found, err := store.FindByID(ctx, created.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(found.ID).To(Equal(created.ID))
		Expect(found.Title).To(Equal("Lecture 1"))
		Expect(found.CourseCode).To(Equal("CS101"))
		Expect(found.Type).To(Equal("slides"))
		Expect(found.StorageURL).To(Equal("https://files.example/l1.pdf"))
		Expect(found.OwnerID).To(Equal("prof-1"))
	})

	It("rejects invalid and duplicate documents", func() {
		_, err := store.Create(ctx, documents.Document{Title: "no course"})
		Expect(errors.Is(err, vector.ErrInvalidArgument)).To(BeTrue())

		doc := NewTestDocument("dup", "CS101", "notes")
		doc.ID = "fixed-id"
		_, err = store.Create(ctx, doc)
		Expect(err).NotTo(HaveOccurred())
		_, err = store.Create(ctx, doc)
		Expect(errors.Is(err, vector.ErrInvalidArgument)).To(BeTrue())
	})

	It("returns NotFoundError for missing documents", func() {
		_, err := store.FindByID(ctx, "missing")
		Expect(errors.Is(err, vector.ErrNotFound)).To(BeTrue())

		var nf documents.NotFoundError
		Expect(errors.As(err, &nf)).To(BeTrue())
		Expect(nf.ID).To(Equal("missing"))

		Expect(errors.Is(store.Delete(ctx, "missing"), vector.ErrNotFound)).To(BeTrue())
	})

	It("deletes documents", func() {
		created, err := store.Create(ctx, NewTestDocument("gone", "CS101", "notes"))
		Expect(err).NotTo(HaveOccurred())

		Expect(store.Delete(ctx, created.ID)).To(Succeed())
		_, err = store.FindByID(ctx, created.ID)
		Expect(errors.Is(err, vector.ErrNotFound)).To(BeTrue())
	})

	It("finds by filter, newest first", func() {
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, d := range []documents.Document{
			{Title: "a", CourseCode: "CS101", Type: "notes", OwnerID: "u1"},
			{Title: "b", CourseCode: "CS101", Type: "slides", OwnerID: "u2"},
			{Title: "c", CourseCode: "MA201", Type: "notes", OwnerID: "u1"},
		} {
			d.CreatedAt = base.Add(time.Duration(i) * time.Hour)
			_, err := store.Create(ctx, d)
			Expect(err).NotTo(HaveOccurred())
		}

		titles := func(f documents.Filter) []string {
			docs, err := store.Find(ctx, f)
			Expect(err).NotTo(HaveOccurred())
			out := make([]string, 0, len(docs))
			for _, d := range docs {
				out = append(out, d.Title)
			}
			return out
		}

		Expect(titles(documents.Filter{})).To(Equal([]string{"c", "b", "a"}))
		Expect(titles(documents.Filter{Course: "CS101"})).To(Equal([]string{"b", "a"}))
		Expect(titles(documents.Filter{Type: "notes"})).To(Equal([]string{"c", "a"}))
		Expect(titles(documents.Filter{Course: "CS101", Type: "notes"})).To(Equal([]string{"a"}))
		Expect(titles(documents.Filter{UploadedBy: "u1"})).To(Equal([]string{"c", "a"}))
		Expect(titles(documents.Filter{Course: "PH100"})).To(BeEmpty())
	})
}
