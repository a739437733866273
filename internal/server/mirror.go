package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"

	v1 "github.com/molehill/hnmirror/api/mirror/v1"
	mirrerrs "github.com/molehill/hnmirror/internal/errors"
	"github.com/molehill/hnmirror/internal/hnmirror"
	"github.com/molehill/hnmirror/internal/reconcile"
)

// Runner is the slice of the reconciler the ops surface needs.
type Runner interface {
	Run(ctx context.Context) (reconcile.Report, error)
	LastReport() *reconcile.Report
}

type mirrorServer struct {
	repo   hnmirror.Repository
	runner Runner

	// Item responses can lag the mirror by one batch; that is an accepted
	// tradeoff for not hitting the db on every read of a hot thread.
	itemCache *lru.Cache[int64, v1.Item]
}

// New builds the ops server with all routes attached.
func New(cfg Config, repo hnmirror.Repository, runner Runner) *Server {
	cache, _ := lru.New[int64, v1.Item](1024)
	ms := &mirrorServer{
		repo:      repo,
		runner:    runner,
		itemCache: cache,
	}

	r := mux.NewRouter()
	r.Handle("/v1/items/{id}", HandlerFuncE(ms.handleGetItem)).Methods(http.MethodGet)
	r.Handle("/v1/users/{handle}", HandlerFuncE(ms.handleGetUser)).Methods(http.MethodGet)
	r.Handle("/v1/status", HandlerFuncE(ms.handleStatus)).Methods(http.MethodGet)
	r.Handle("/v1/sync", HandlerFuncE(ms.handleSync)).Methods(http.MethodPost)

	return newServer(cfg.Port, r)
}

func (s *mirrorServer) handleGetItem(w http.ResponseWriter, r *http.Request) error {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return mirrerrs.E(http.StatusBadRequest, "id must be numeric")
	}

	if resp, ok := s.itemCache.Get(id); ok {
		return WriteJSON(w, http.StatusOK, resp)
	}

	item, err := s.repo.Item(r.Context(), id)
	if errors.Is(err, hnmirror.ErrNotFound) {
		return mirrerrs.E(http.StatusNotFound, "item not mirrored")
	}
	if err != nil {
		return mirrerrs.E(err)
	}

	resp := itemResp(item)
	s.itemCache.Add(id, resp)

	return WriteJSON(w, http.StatusOK, resp)
}

func (s *mirrorServer) handleGetUser(w http.ResponseWriter, r *http.Request) error {
	handle := mux.Vars(r)["handle"]

	user, err := s.repo.User(r.Context(), handle)
	if errors.Is(err, hnmirror.ErrNotFound) {
		return mirrerrs.E(http.StatusNotFound, "user not mirrored")
	}
	if err != nil {
		return mirrerrs.E(err)
	}

	return WriteJSON(w, http.StatusOK, userResp(user))
}

func (s *mirrorServer) handleStatus(w http.ResponseWriter, r *http.Request) error {
	rep := s.runner.LastReport()
	if rep == nil {
		return mirrerrs.E(http.StatusNotFound, "no batch has completed yet")
	}

	return WriteJSON(w, http.StatusOK, rep)
}

// handleSync runs one batch inline and returns its report. A batch already
// in progress answers 409 rather than piling on.
func (s *mirrorServer) handleSync(w http.ResponseWriter, r *http.Request) error {
	rep, err := s.runner.Run(r.Context())
	if err != nil {
		return mirrerrs.E(err)
	}
	if rep.Skipped {
		return mirrerrs.E(http.StatusConflict, "a batch is already in progress")
	}

	// The batch may have rewritten anything; drop cached responses.
	s.itemCache.Purge()

	return WriteJSON(w, http.StatusOK, rep)
}

func itemResp(item hnmirror.Item) v1.Item {
	return v1.Item{
		ID:          item.ID,
		Kind:        string(item.Kind),
		Deleted:     item.Deleted,
		Dead:        item.Dead,
		By:          item.By,
		Time:        item.Time,
		Parent:      item.Parent,
		Poll:        item.Poll,
		Kids:        item.Kids,
		Parts:       item.Parts,
		URL:         item.URL,
		Title:       item.Title,
		Text:        item.Text,
		Score:       item.Score,
		Descendants: item.Descendants,
		LastSeenAt:  item.LastSeenAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func userResp(user hnmirror.User) v1.User {
	return v1.User{
		Handle:     user.Handle,
		Delay:      user.Delay,
		Created:    user.Created,
		Karma:      user.Karma,
		About:      user.About,
		Submitted:  user.Submitted,
		LastSeenAt: user.LastSeenAt,
		UpdatedAt:  user.UpdatedAt,
	}
}
