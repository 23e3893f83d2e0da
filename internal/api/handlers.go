package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cardspace/cardspace/internal/core"
	"github.com/cardspace/cardspace/internal/mapper"
	"github.com/cardspace/cardspace/internal/store"
)

const greeting = "Hello from cardspace!"

// Validation messages returned with 400.
const (
	errInvalidMessage  = "Invalid message data"
	errInvalidCard     = "Invalid card data"
	errInvalidPosition = "Invalid position data"
	errInvalidSize     = "Invalid size data"
	errInvalidContent  = "Invalid content data"
	errInvalidTitle    = "Invalid title data"
	errCardNotFound    = "Card not found"
)

type APIHandler struct {
	chatService *core.ChatService
	cardService *core.CardService
}

func NewAPIHandler(chat *core.ChatService, cards *core.CardService) *APIHandler {
	return &APIHandler{chatService: chat, cardService: cards}
}

func (h *APIHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(greeting))
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Messages

func (h *APIHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatService.ListMessages(r.Context())
	if err != nil {
		h.serverError(w, r, "Failed to list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeObject(r)
	if !ok {
		writeError(w, http.StatusBadRequest, errInvalidMessage)
		return
	}
	role, roleOK := body["role"].(string)
	content, contentOK := body["content"].(string)
	if !roleOK || !contentOK || !store.Role(role).Valid() {
		writeError(w, http.StatusBadRequest, errInvalidMessage)
		return
	}

	messages, err := h.chatService.PostMessage(r.Context(), store.Role(role), content)
	if err != nil {
		h.serverError(w, r, "Failed to post message", err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// Cards

type createCardRequest struct {
	mapper.CardInput
	MessageID flexibleID `json:"messageId"`
}

func (h *APIHandler) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cardService.List(r.Context())
	if err != nil {
		h.serverError(w, r, "Failed to list cards", err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *APIHandler) CreateCardHandler(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidCard)
		return
	}

	card, err := h.cardService.Create(r.Context(), req.CardInput, req.MessageID.value)
	if err != nil {
		h.serverError(w, r, "Failed to create card", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *APIHandler) ReplaceCardHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}
	var in mapper.CardInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidCard)
		return
	}

	card, err := h.cardService.Replace(r.Context(), id, in)
	h.respondCard(w, r, card, err)
}

func (h *APIHandler) MoveCardHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}
	x, y, ok := decodePair(r, "position", "x", "y")
	if !ok {
		writeError(w, http.StatusBadRequest, errInvalidPosition)
		return
	}

	card, err := h.cardService.Move(r.Context(), id, x, y)
	h.respondCard(w, r, card, err)
}

func (h *APIHandler) ResizeCardHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}
	width, height, ok := decodePair(r, "size", "width", "height")
	if !ok {
		writeError(w, http.StatusBadRequest, errInvalidSize)
		return
	}

	card, err := h.cardService.Resize(r.Context(), id, width, height)
	h.respondCard(w, r, card, err)
}

func (h *APIHandler) UpdateContentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}
	content, ok := decodeString(r, "content")
	if !ok {
		writeError(w, http.StatusBadRequest, errInvalidContent)
		return
	}

	card, err := h.cardService.UpdateContent(r.Context(), id, content)
	h.respondCard(w, r, card, err)
}

func (h *APIHandler) UpdateTitleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}
	title, ok := decodeString(r, "title")
	if !ok {
		writeError(w, http.StatusBadRequest, errInvalidTitle)
		return
	}

	card, err := h.cardService.UpdateTitle(r.Context(), id, title)
	h.respondCard(w, r, card, err)
}

func (h *APIHandler) DeleteCardHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}

	if err := h.cardService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, errCardNotFound)
			return
		}
		h.serverError(w, r, "Failed to delete card", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) CardSuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := cardID(w, r)
	if !ok {
		return
	}

	suggestions, err := h.cardService.Suggest(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, errCardNotFound)
			return
		}
		h.serverError(w, r, "Failed to generate suggestions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"suggestions": suggestions})
}

func (h *APIHandler) respondCard(w http.ResponseWriter, r *http.Request, card *mapper.Card, err error) {
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, errCardNotFound)
			return
		}
		h.serverError(w, r, "Failed to update card", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *APIHandler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger(r).Error(msg, "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

// cardID parses the {id} URL parameter. Ids that cannot name a card are
// answered with 404.
func cardID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, errCardNotFound)
		return 0, false
	}
	return id, true
}

// flexibleID accepts an integer id sent as a JSON number or string.
type flexibleID struct {
	value *int64
}

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		f.value = nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", v)
		}
		f.value = &id
	case float64:
		id := int64(v)
		if float64(id) != v {
			return fmt.Errorf("invalid id %v", v)
		}
		f.value = &id
	default:
		return fmt.Errorf("invalid id type %T", raw)
	}
	return nil
}
