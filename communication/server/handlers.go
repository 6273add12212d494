package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"guesser/catalog"
	"guesser/communication"
	"guesser/engine"
	"guesser/experiments/metrics"
	"guesser/failure"
	"guesser/game"
)

func (s *Server) handleHealth(c echo.Context) error {
	s.mu.Lock()
	games := len(s.games)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"games":  games,
	})
}

func (s *Server) handleThemes(c echo.Context) error {
	themes, err := s.source.Themes(c.Request().Context())
	if err != nil {
		return err
	}
	if themes == nil {
		themes = []string{}
	}
	return c.JSON(http.StatusOK, communication.ThemesResponse{Themes: themes})
}

func (s *Server) handleCreateGame(c echo.Context) error {
	var req communication.CreateGameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Theme == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "theme is required")
	}
	var version catalog.Version
	if req.Version != "" {
		v, err := catalog.ParseVersion(req.Version)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid version %q", req.Version))
		}
		version = v
	}

	ctx := c.Request().Context()
	session, err := game.New(ctx, s.source, s.ids, req.Theme, version, s.options...)
	if err != nil {
		return err
	}
	g := engine.NewGame(session)
	if _, err := g.Start(ctx); err != nil {
		_ = session.Close()
		return err
	}

	metrics.GamesStarted.WithLabelValues(session.Theme()).Inc()
	e := s.register(g)
	e.mu.Lock()
	defer e.mu.Unlock()
	s.markFinished(e)
	log.Info().Str("game", e.id.String()).Uint64("session", session.ID()).Msg("game registered")
	return c.JSON(http.StatusCreated, e.view())
}

func (s *Server) handleGetGame(c echo.Context) error {
	e, err := s.lookup(c)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()
	return c.JSON(http.StatusOK, e.view())
}

func (s *Server) handleDeleteGame(c echo.Context) error {
	e, err := s.lookup(c)
	if err != nil {
		return err
	}
	e.mu.Unlock()
	s.remove(e)
	s.discard(e)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleAnswer(c echo.Context) error {
	var req communication.AnswerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	value, err := game.ParseAnswer(req.Answer)
	if err != nil {
		return err
	}

	e, err := s.lookup(c)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	err = s.play(c.Request().Context(), e, func(ctx context.Context, g *engine.Game) error {
		_, err := g.Answer(ctx, value)
		return err
	})
	if err != nil {
		return err
	}
	metrics.AnswersReceived.WithLabelValues(game.AnswerLabel(value)).Inc()
	return c.JSON(http.StatusOK, e.view())
}

func (s *Server) handleVerdict(c echo.Context) error {
	var req communication.VerdictRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	e, err := s.lookup(c)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	err = s.play(c.Request().Context(), e, func(ctx context.Context, g *engine.Game) error {
		_, err := g.Verdict(ctx, req.Right)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e.view())
}

func (s *Server) handleUndo(c echo.Context) error {
	e, err := s.lookup(c)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if e.undo == nil {
		return errNothingToUndo
	}
	if err := s.restore(c.Request().Context(), e, *e.undo); err != nil {
		return fmt.Errorf("undo: %w", err)
	}
	e.undo = nil
	log.Info().Str("game", e.id.String()).Msg("turn undone")
	return c.JSON(http.StatusOK, e.view())
}

// play runs one turn on a locked entry. A successful turn becomes undoable; a turn that
// fails in storage is rolled back so the same request can be retried.
func (s *Server) play(ctx context.Context, e *entry, turn func(ctx context.Context, g *engine.Game) error) error {
	before, err := e.checkpoint(ctx)
	if err != nil {
		return err
	}
	if err := turn(ctx, e.game); err != nil {
		if failure.Is(err, failure.KindStorage) {
			if rerr := s.restore(ctx, e, before); rerr != nil {
				log.Error().Err(rerr).Str("game", e.id.String()).Msg("roll back failed turn")
			}
		}
		return err
	}
	e.undo = &before
	s.markFinished(e)
	return nil
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, kind := statusOf(err)
	metrics.Errors.WithLabelValues(kind).Inc()
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, communication.ErrorResponse{Error: msg, Kind: kind})
	}
	if err != nil {
		log.Warn().Err(err).Msg("write error response")
	}
}

func statusOf(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code, "request"
	case errors.Is(err, errGameNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errNothingToUndo),
		errors.Is(err, engine.ErrNoQuestionPending),
		errors.Is(err, engine.ErrNoGuessPending),
		errors.Is(err, engine.ErrFinished):
		return http.StatusConflict, "conflict"
	}

	switch kind := failure.KindOf(err); kind {
	case failure.KindInvalidAnswer:
		return http.StatusBadRequest, string(kind)
	case failure.KindConfiguration:
		return http.StatusNotFound, string(kind)
	case failure.KindStorage:
		return http.StatusInternalServerError, string(kind)
	}
	return http.StatusInternalServerError, "internal"
}
