package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"meetcal/internal/lifecycle"
	"meetcal/internal/model"
	"meetcal/internal/selection"
)

// selectionResponse describes the open flow after a selection action.
// Intents lists what the action emitted; GET /api/selection returns the
// whole recent buffer instead.
type selectionResponse struct {
	Active  *model.Meeting       `json:"active"`
	Stage   selection.Stage      `json:"stage"`
	Intents []selection.Recorded `json:"intents"`
	Result  *lifecycle.Result    `json:"result,omitempty"`
}

// UseIntents makes selection responses carry the intents each action
// produced. r must be the sink the engine was built with.
func (s *Server) UseIntents(r *selection.Recorder) {
	s.intents = r
}

// intentMark returns the current intent sequence. Callers hold mu.
func (s *Server) intentMark() uint64 {
	if s.intents == nil {
		return 0
	}
	return s.intents.Seq()
}

// selectionState snapshots the coordinator. Callers hold mu.
func (s *Server) selectionState(since uint64, res *lifecycle.Result) selectionResponse {
	resp := selectionResponse{Intents: []selection.Recorded{}, Result: res}
	if m, stage, open := s.engine.Selection().Active(); open {
		resp.Active = &m
		resp.Stage = stage
	}
	if s.intents != nil {
		resp.Intents = s.intents.Since(since)
	}
	return resp
}

func (s *Server) handleSelection(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := s.selectionState(0, nil)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

// handleSelectionAction runs one coordinator action on the stored meeting.
//
// POST /api/meetings/{id}/select
// POST /api/meetings/{id}/request-cancel
// POST /api/meetings/{id}/request-reschedule
// POST /api/meetings/{id}/join
func (s *Server) handleSelectionAction(action func(*selection.Coordinator, model.Meeting) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		m, err := s.store.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		mark := s.intentMark()
		if err := action(s.engine.Selection(), m); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.selectionState(mark, nil))
	}
}

func selectMeeting(c *selection.Coordinator, m model.Meeting) error {
	c.Select(m)
	return nil
}

func requestCancel(c *selection.Coordinator, m model.Meeting) error {
	return c.RequestCancel(m)
}

func requestReschedule(c *selection.Coordinator, m model.Meeting) error {
	return c.RequestReschedule(m)
}

// joinMeeting is a no-op for meetings without a link.
func joinMeeting(c *selection.Coordinator, m model.Meeting) error {
	c.Join(m)
	return nil
}

// handleSelectionConfirm finishes an open cancel or reschedule flow.
//
// POST /api/selection/confirm {"reason": "...", "canceled_by": "counterpart"}
// POST /api/selection/confirm {"starts_at": "2024-03-01T10:00:00Z"}
func (s *Server) handleSelectionConfirm(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.finishFlow(w, r, func(c *selection.Coordinator, stage selection.Stage) (lifecycle.Result, error) {
		switch stage {
		case selection.StageConfirmCancel:
			return c.ConfirmCancel(payload.Reason, payload.CanceledBy)
		case selection.StageConfirmReschedule:
			return c.ConfirmReschedule(payload.NewStartsAt)
		}
		return lifecycle.Result{}, selection.ErrWrongStage
	})
}

// handleSelectionComplete marks the meeting in the detail view as held:
// POST /api/selection/complete
func (s *Server) handleSelectionComplete(w http.ResponseWriter, r *http.Request) {
	s.finishFlow(w, r, func(c *selection.Coordinator, _ selection.Stage) (lifecycle.Result, error) {
		return c.Complete()
	})
}

func (s *Server) finishFlow(w http.ResponseWriter, r *http.Request, confirm func(*selection.Coordinator, selection.Stage) (lifecycle.Result, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.engine.Selection()
	active, stage, open := sel.Active()
	if !open {
		writeError(w, statusFor(selection.ErrNoActiveFlow), selection.ErrNoActiveFlow.Error())
		return
	}
	// The meeting may have left the collection since it was selected.
	if _, err := s.store.Get(active.ID); err != nil {
		sel.Clear()
		writeError(w, statusFor(err), err.Error())
		return
	}

	mark := s.intentMark()
	res, err := confirm(sel, stage)
	if err == nil {
		err = s.commit(r.Context(), res)
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.selectionState(mark, &res))
}

// handleSelectionClear closes any open flow: DELETE /api/selection
func (s *Server) handleSelectionClear(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mark := s.intentMark()
	s.engine.Selection().Clear()
	writeJSON(w, http.StatusOK, s.selectionState(mark, nil))
}

// commit journals a transition result and stores it. Callers hold mu, so
// the meeting cannot disappear between the two steps.
func (s *Server) commit(ctx context.Context, res lifecycle.Result) error {
	if s.journal != nil {
		if err := s.journal.Record(ctx, res); err != nil {
			return err
		}
	}
	return s.store.Put(res.Meeting)
}

func decodePayload(r *http.Request) (lifecycle.Payload, error) {
	var p lifecycle.Payload
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return p, errors.New("invalid JSON body: " + err.Error())
	}
	return p, nil
}
