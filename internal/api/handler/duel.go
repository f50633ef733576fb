package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/neurodash/internal/api/middleware"
	"github.com/mcoot/neurodash/internal/api/request"
	"github.com/mcoot/neurodash/internal/api/response"
	"github.com/mcoot/neurodash/internal/feed"
	"github.com/mcoot/neurodash/internal/model"
	"github.com/mcoot/neurodash/internal/services/bot"
	"github.com/mcoot/neurodash/internal/services/duel"
	"github.com/mcoot/neurodash/internal/sse"
)

// DuelEvent is the SSE event name carrying a full duel record
const DuelEvent = "duel"

// DuelHandler handles duel endpoints. Every transition is addressed by
// room code; a stale transition answers 200 with the current record.
type DuelHandler struct {
	controller *duel.Controller
	botService *bot.Service
	subscriber feed.Subscriber
	logger     *slog.Logger
}

// NewDuelHandler creates a new duel handler
func NewDuelHandler(controller *duel.Controller, botService *bot.Service, subscriber feed.Subscriber, logger *slog.Logger) *DuelHandler {
	return &DuelHandler{
		controller: controller,
		botService: botService,
		subscriber: subscriber,
		logger:     logger.With(slog.String("component", "duel-handler")),
	}
}

// transition is a guarded duel write on behalf of the caller
type transition func(ctx context.Context, d *model.Duel, player model.PlayerID) (*model.Duel, error)

// Create handles POST /api/v1/duels
func (h *DuelHandler) Create(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	d, err := h.controller.CreateGame(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, response.DuelFromModel(d))
}

// Join handles POST /api/v1/duels/join
func (h *DuelHandler) Join(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.JoinDuelRequest
	if !decode(w, r, &req, false) {
		return
	}

	d, err := h.controller.JoinGame(r.Context(), req.RoomCode, player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.DuelFromModel(d))
}

// Get handles GET /api/v1/duels/{code}
func (h *DuelHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.controller.GetGameByRoomCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.DuelFromModel(d))
}

// Ready handles POST /api/v1/duels/{code}/ready
func (h *DuelHandler) Ready(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, func(ctx context.Context, d *model.Duel, player model.PlayerID) (*model.Duel, error) {
		return h.controller.SetReady(ctx, d.ID, player)
	})
}

// Start handles POST /api/v1/duels/{code}/start
func (h *DuelHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, func(ctx context.Context, d *model.Duel, _ model.PlayerID) (*model.Duel, error) {
		return h.controller.StartRound(ctx, d.ID)
	})
}

// Reaction handles POST /api/v1/duels/{code}/reaction
func (h *DuelHandler) Reaction(w http.ResponseWriter, r *http.Request) {
	var req request.ReactionRequest
	if !decode(w, r, &req, false) {
		return
	}

	h.apply(w, r, func(ctx context.Context, d *model.Duel, player model.PlayerID) (*model.Duel, error) {
		return h.controller.RecordReaction(ctx, d.ID, player, req.ReactionMs)
	})
}

// FalseStart handles POST /api/v1/duels/{code}/false-start
func (h *DuelHandler) FalseStart(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, func(ctx context.Context, d *model.Duel, player model.PlayerID) (*model.Duel, error) {
		return h.controller.RecordFalseStart(ctx, d.ID, player)
	})
}

// Finish handles POST /api/v1/duels/{code}/finish
func (h *DuelHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, func(ctx context.Context, d *model.Duel, _ model.PlayerID) (*model.Duel, error) {
		return h.controller.FinishRound(ctx, d.ID)
	})
}

// Rematch handles POST /api/v1/duels/{code}/rematch
func (h *DuelHandler) Rematch(w http.ResponseWriter, r *http.Request) {
	var req request.RematchRequest
	if !decode(w, r, &req, true) {
		return
	}

	h.apply(w, r, func(ctx context.Context, d *model.Duel, player model.PlayerID) (*model.Duel, error) {
		round := req.Round
		if round == 0 {
			round = d.Round
		}
		return h.controller.Rematch(ctx, d.ID, player, round)
	})
}

// AddBot handles POST /api/v1/duels/{code}/bot
func (h *DuelHandler) AddBot(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.AddBotRequest
	if !decode(w, r, &req, true) {
		return
	}

	// The bot outlives this request
	botPlayer, err := h.botService.AddBotToDuel(context.WithoutCancel(r.Context()), mux.Vars(r)["code"], player.ID, req.Strategy)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, response.PlayerFromModel(botPlayer))
}

// Events handles GET /api/v1/duels/{code}/events. The stream opens with
// the current record and then carries one event per write.
func (h *DuelHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code, err := duel.NormalizeRoomCode(mux.Vars(r)["code"])
	if err != nil {
		WriteError(w, err)
		return
	}

	// Subscribe before the snapshot read so no write falls in between
	sub, err := h.subscriber.Subscribe(ctx, code)
	if err != nil {
		WriteError(w, err)
		return
	}
	defer sub.Close()

	d, err := h.controller.GetGameByRoomCode(ctx, string(code))
	if err != nil {
		WriteError(w, err)
		return
	}
	initial, err := duelEvent(d)
	if err != nil {
		WriteError(w, err)
		return
	}

	events := make(chan sse.Event)
	go func() {
		defer close(events)
		for change := range sub.Changes() {
			e, err := duelEvent(&change.Duel)
			if err != nil {
				h.logger.Warn("failed to encode duel event", slog.String("error", err.Error()))
				continue
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	sse.Serve(w, r, events, initial)
}

func duelEvent(d *model.Duel) (sse.Event, error) {
	data, err := json.Marshal(response.DuelFromModel(d))
	if err != nil {
		return sse.Event{}, err
	}
	return sse.Event{Name: DuelEvent, Data: string(data)}, nil
}

// apply resolves the room, checks the caller holds a seat and runs fn
func (h *DuelHandler) apply(w http.ResponseWriter, r *http.Request, fn transition) {
	player := middleware.MustGetPlayer(r.Context())

	d, err := h.controller.GetGameByRoomCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		WriteError(w, err)
		return
	}
	if !d.HasPlayer(player.ID) {
		WriteError(w, model.ErrNotInDuel)
		return
	}

	updated, err := fn(r.Context(), d, player.ID)
	if updated == nil {
		updated = d
	}
	switch {
	case duel.IsStale(err):
		response.Stale(w, response.DuelFromModel(updated))
	case err != nil:
		WriteError(w, err)
	default:
		response.JSON(w, http.StatusOK, response.DuelFromModel(updated))
	}
}
