package service

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/egov/grievance-service/internal/domain"
	apperrors "github.com/egov/grievance-service/pkg/util/errorutil"
)

var _ = Describe("Grievance lifecycle", func() {
	var (
		h   *harness
		ctx context.Context
	)

	BeforeEach(func() {
		h = newHarness(GinkgoT())
		ctx = context.Background()
	})

	fileWaterComplaint := func() *domain.Grievance {
		g, err := h.svc.Create(ctx, citizen, CreateGrievanceInput{
			DepartmentID: "D001",
			CategoryID:   "C101",
			Title:        "No water supply",
			Description:  "No water in the building since yesterday.",
		})
		Expect(err).NotTo(HaveOccurred())
		return g
	}

	Context("when a citizen escalates an overdue complaint", func() {
		It("hands it to the department supervisor once the 48h SLA is breached", func() {
			g := fileWaterComplaint()
			h.advance(50 * time.Hour)

			escalated, err := h.svc.Escalate(ctx, citizen, g.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(escalated.Status).To(Equal(domain.StatusEscalated))
			Expect(escalated.IsEscalated).To(BeTrue())
			Expect(escalated.AssignedOfficerID).To(Equal(supervisor.ID))

			entries := h.ledger(GinkgoT(), g.ID)
			Expect(entries).To(HaveLen(2))
			Expect(*entries[1].OldStatus).To(Equal(domain.StatusSubmitted))
			Expect(entries[1].NewStatus).To(Equal(domain.StatusEscalated))
			Expect(entries[1].ChangedBy).To(Equal(citizen.ID))

			breaches, err := h.svc.SLABreaches(ctx, supervisor)
			Expect(err).NotTo(HaveOccurred())
			Expect(breaches).To(ContainElement(HaveField("ID", g.ID)))
		})

		It("rejects escalation while the complaint is within SLA", func() {
			g := fileWaterComplaint()
			h.advance(10 * time.Hour)

			_, err := h.svc.Escalate(ctx, citizen, g.ID)
			Expect(errorCode(err)).To(Equal(apperrors.CodeValidationFailed))

			stored := h.stored(GinkgoT(), g.ID)
			Expect(stored.Status).To(Equal(domain.StatusSubmitted))
			Expect(stored.IsEscalated).To(BeFalse())
		})
	})

	Context("when an escalated complaint is reassigned", func() {
		It("lets an admin assign an officer and the officer carry it to resolution", func() {
			g := fileWaterComplaint()
			h.advance(50 * time.Hour)
			_, err := h.svc.Escalate(ctx, citizen, g.ID)
			Expect(err).NotTo(HaveOccurred())

			assigned, err := h.svc.Assign(ctx, admin, g.ID, officer.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(assigned.Status).To(Equal(domain.StatusAssigned))
			Expect(assigned.AssignedOfficerID).To(Equal(officer.ID))
			Expect(assigned.IsEscalated).To(BeTrue())

			_, err = h.svc.MarkInReview(ctx, officer, g.ID)
			Expect(err).NotTo(HaveOccurred())
			resolved, err := h.svc.Resolve(ctx, officer, g.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.ResolvedAt).NotTo(BeNil())
			Expect(*resolved.ResolvedAt).To(Equal(h.clock()))

			_, err = h.svc.Escalate(ctx, citizen, g.ID)
			Expect(errorCode(err)).To(Equal(apperrors.CodeInvalidTransition))
		})
	})

	Context("when a citizen reopens a closed complaint", func() {
		var g *domain.Grievance

		BeforeEach(func() {
			g = fileWaterComplaint()
			_, err := h.svc.Assign(ctx, supervisor, g.ID, officer.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = h.svc.MarkInReview(ctx, officer, g.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = h.svc.Resolve(ctx, officer, g.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = h.svc.Close(ctx, officer, g.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("accepts a reopen inside the window and clears the assignment", func() {
			h.advance(ReopenWindow - time.Second)

			reopened, err := h.svc.Reopen(ctx, citizen, g.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(reopened.Status).To(Equal(domain.StatusReopened))
			Expect(reopened.AssignedOfficerID).To(BeEmpty())

			_, err = h.svc.Get(ctx, officer, g.ID)
			Expect(errorCode(err)).To(Equal(apperrors.CodeForbidden))
		})

		It("rejects a reopen after the window", func() {
			h.advance(ReopenWindow + time.Second)

			_, err := h.svc.Reopen(ctx, citizen, g.ID)
			Expect(errorCode(err)).To(Equal(apperrors.CodeValidationFailed))
			Expect(h.stored(GinkgoT(), g.ID).Status).To(Equal(domain.StatusClosed))
		})
	})
})
