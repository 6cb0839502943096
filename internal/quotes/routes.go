package quotes

import "github.com/go-chi/chi/v5"

// MountRoutes registers the staff API. The caller is expected to install
// actor middleware on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quotes", func(r chi.Router) {
		r.Get("/form-options", h.formOptions)
		r.Post("/preview", h.preview)
		r.Get("/", h.list)
		r.With(h.idempotent("quotes.create")).Post("/", h.create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.show)
			r.Patch("/", h.update)
			r.Delete("/", h.remove)

			r.Post("/items", h.addItem)
			r.Patch("/items/{itemID}", h.patchItem)
			r.Delete("/items/{itemID}", h.removeItem)

			r.Post("/template", h.applyTemplate)
			r.Post("/save-template", h.saveTemplate)

			r.Post("/submit", h.submit)
			r.With(h.idempotent("quotes.send")).Post("/send", h.send)
			r.Post("/accept", h.accept)
			r.Post("/reject", h.reject)
			r.With(h.idempotent("quotes.convert")).Post("/convert", h.convert)
			r.With(h.idempotent("quotes.reopen")).Post("/reopen", h.reopen)

			r.Get("/pdf", h.pdf)
			r.With(h.idempotent("quotes.email")).Post("/email", h.email)
			r.Get("/history", h.history)
		})
	})
}

// MountPublicRoutes registers the unauthenticated client response endpoint.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/public/quotes/{id}/respond", h.respondToQuote)
}
