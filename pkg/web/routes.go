package web

import "github.com/gofiber/fiber/v3"

// Register mounts every order workflow endpoint on router.
func (h *APIHandlers) Register(router fiber.Router) {
	o := router.Group("/orders")
	o.Get("/", h.ListOrders)
	o.Post("/", h.CreateOrder)
	o.Get("/:id/workflow", h.GetWorkflowState)
	o.Post("/:id/attachments", h.UploadAttachment)
	o.Post("/:id/steps/:step/advance", h.AdvanceStep)
	o.Post("/:id/steps/:step/reject", h.RejectStep)
	o.Post("/:id/steps/:step/reopen", h.ReopenStep)
	o.Post("/:id/steps/:step/delegate", h.DelegateStep)

	router.Post("/leads/:leadId/convert", h.ConvertLead)

	a := router.Group("/approvals")
	a.Get("/", h.ListApprovals)
	a.Post("/", h.SubmitApproval)
	a.Post("/:id/claim", h.ClaimApproval)
	a.Post("/:id/approve", h.ApproveItem)
	a.Post("/:id/reject", h.RejectItem)

	router.Get("/registry/:osType", h.GetRegistry)
	router.Get("/health", h.HealthCheck)
}
