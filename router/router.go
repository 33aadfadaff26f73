package router

import (
	"net/http"

	docHandler "codraft/internal/document"
	"codraft/internal/document/service"
	"codraft/middleware"
	"codraft/socket"
)

func Setup(svc *service.DocumentService) http.Handler {
	mux := http.NewServeMux()

	// WebSocket: subscription feeds and live presence frames.
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(middleware.UserIDKey).(string)
		socket.ServeWs(svc, w, r, userID)
	})
	mux.Handle("/ws", middleware.AuthMiddleware(wsHandler))

	// REST API
	h := docHandler.NewDocumentHandler(svc)
	auth := middleware.AuthMiddleware

	mux.Handle("/api/documents", auth(http.HandlerFunc(h.ListDocuments)))
	mux.Handle("/api/documents/get", auth(http.HandlerFunc(h.GetDocument)))
	mux.Handle("/api/documents/create", auth(http.HandlerFunc(h.CreateDocument)))
	mux.Handle("/api/documents/update", auth(http.HandlerFunc(h.UpdateDocument)))
	mux.Handle("/api/documents/rename", auth(http.HandlerFunc(h.RenameDocument)))
	mux.Handle("/api/documents/delete", auth(http.HandlerFunc(h.DeleteDocument)))
	mux.Handle("/api/documents/presence", auth(http.HandlerFunc(h.UpdatePresence)))

	return middleware.CORSMiddleware(mux)
}
