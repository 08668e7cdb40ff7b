// Package search drives the incremental search session state machine:
// restriction building, index lifecycle, the bounded first-batch wait, and
// delta computation against the per-session transmitted set.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/groupmesh/incsearch/internal/domain"
	"github.com/groupmesh/incsearch/internal/domain/criteria"
	"github.com/groupmesh/incsearch/internal/domain/delta"
	"github.com/groupmesh/incsearch/internal/domain/query"
	"github.com/groupmesh/incsearch/internal/domain/restriction"
	"github.com/groupmesh/incsearch/internal/domain/result"
	"github.com/groupmesh/incsearch/internal/domain/schema"
	"github.com/groupmesh/incsearch/internal/domain/session"
	"github.com/groupmesh/incsearch/internal/logger"
	"github.com/groupmesh/incsearch/internal/metrics"
)

// State labels the search mode reported to clients.
type State string

const (
	// StateRunning means the index is still populating; poll for more rows.
	StateRunning State = "running"
	// StateComplete means every matching row has been indexed.
	StateComplete State = "complete"
	// StateFallback means the store answered synchronously without an index.
	StateFallback State = "fallback"
)

// Config bounds the first-batch wait loop and page sizes.
type Config struct {
	// PollInterval is the pause between index readiness probes.
	PollInterval time.Duration
	// WaitBudget caps how long a search blocks for the first rows.
	WaitBudget time.Duration
	// DefaultPageSize applies when the client sends no row count.
	DefaultPageSize int
	// MaxPageSize clamps client-requested row counts.
	MaxPageSize int
}

// SearchOutput is the response to a fresh search.
type SearchOutput struct {
	Handle string
	State  State
	Total  int
	Rows   []result.Row
}

// UpdateOutput is the response to an incremental poll.
type UpdateOutput struct {
	Active bool
	State  State
	Total  int
	Rows   []result.Row
}

// Service orchestrates search sessions over a provider and session store.
type Service struct {
	provider Provider
	sessions Sessions
	cfg      Config
}

// NewService creates the search service.
func NewService(provider Provider, sessions Sessions, cfg Config) *Service {
	return &Service{provider: provider, sessions: sessions, cfg: cfg}
}

// Search starts (or restarts) a search for the (user, view) pair.
//
// The criteria are compiled to a restriction tree and fingerprinted; when
// the fingerprint matches the one already applied to the session's index,
// re-applying is skipped and the index keeps populating undisturbed. The
// transmitted set is reset either way, so the client receives the full
// result from the top. Search blocks for the first rows up to the
// configured wait budget and never indefinitely.
func (s *Service) Search(
	ctx context.Context, user, view string, crit criteria.Criteria,
	sch schema.Schema, pageSize int,
) (SearchOutput, error) {
	log := logger.FromContext(ctx)
	pageSize = s.clampPageSize(pageSize)

	node, err := restriction.Build(crit, sch)
	if err != nil {
		return SearchOutput{}, err
	}

	sess, err := s.sessions.Load(ctx, user, view)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return SearchOutput{}, fmt.Errorf("load session: %w", err)
		}
		sess = session.New(user, view)
	}

	idx, err := s.obtainIndex(ctx, sess, crit)
	if err != nil {
		if errors.Is(err, domain.ErrIndexUnavailable) {
			return s.fallback(ctx, node, crit, pageSize)
		}
		return SearchOutput{}, err
	}

	fp := fingerprint(node, crit.Folders(), crit.Recurse())
	if fp != sess.Fingerprint() {
		if err := idx.SetCriteria(ctx, node); err != nil {
			// The persisted fingerprint stays unapplied, so the next
			// search retries the apply on the same index.
			return SearchOutput{}, wrapApplyError(err)
		}
		sess.SetFingerprint(fp)
	} else {
		log.Debug("criteria unchanged, reusing index",
			zap.String("handle", idx.Handle()), zap.Uint64("fingerprint", fp))
	}

	wasActive := sess.Active()
	sess.ResetTransmitted()
	sess.Activate()

	total, populating, err := s.waitFirstBatch(ctx, idx)
	if err != nil {
		return SearchOutput{}, err
	}

	rows, err := s.fetchAll(ctx, idx, total)
	if err != nil {
		return SearchOutput{}, err
	}
	toSend, transmitted := delta.Diff(rows, sess.Transmitted(), pageSize)
	sess.SetTransmitted(transmitted)

	if err := s.sessions.Save(ctx, sess); err != nil {
		return SearchOutput{}, fmt.Errorf("save session: %w", err)
	}

	metrics.SearchesTotal.WithLabelValues("index").Inc()
	metrics.RowsTransmittedTotal.Add(float64(len(toSend)))
	if !wasActive {
		metrics.ActiveSessions.Inc()
	}

	state := StateRunning
	if !populating {
		state = StateComplete
	}
	return SearchOutput{Handle: idx.Handle(), State: state, Total: total, Rows: toSend}, nil
}

// Update returns rows added or modified since the last transmission. An
// inactive or unknown session is a benign no-op, not an error.
func (s *Service) Update(ctx context.Context, user, view string, pageSize int) (UpdateOutput, error) {
	pageSize = s.clampPageSize(pageSize)

	sess, err := s.sessions.Load(ctx, user, view)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return UpdateOutput{Active: false}, nil
		}
		return UpdateOutput{}, fmt.Errorf("load session: %w", err)
	}
	if !sess.Active() {
		return UpdateOutput{Active: false}, nil
	}

	idx, err := s.provider.OpenIndex(ctx, sess.IndexHandle())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Index evaporated (e.g. store restart). Drop the stale session.
			if delErr := s.sessions.Delete(ctx, user, view); delErr != nil {
				logger.FromContext(ctx).Warn("stale session cleanup",
					zap.String("user", user), zap.String("view", view), zap.Error(delErr))
			}
			return UpdateOutput{Active: false}, nil
		}
		return UpdateOutput{}, fmt.Errorf("open index: %w", err)
	}

	total, err := idx.RowCount(ctx)
	if err != nil {
		return UpdateOutput{}, fmt.Errorf("row count: %w", err)
	}
	populating, err := idx.Populating(ctx)
	if err != nil {
		return UpdateOutput{}, fmt.Errorf("populating: %w", err)
	}

	rows, err := s.fetchAll(ctx, idx, total)
	if err != nil {
		return UpdateOutput{}, err
	}
	toSend, transmitted := delta.Diff(rows, sess.Transmitted(), pageSize)
	sess.SetTransmitted(transmitted)

	if err := s.sessions.Save(ctx, sess); err != nil {
		return UpdateOutput{}, fmt.Errorf("save session: %w", err)
	}

	metrics.UpdatesTotal.Inc()
	metrics.RowsTransmittedTotal.Add(float64(len(toSend)))

	state := StateRunning
	if !populating {
		state = StateComplete
	}
	return UpdateOutput{Active: true, State: state, Total: total, Rows: toSend}, nil
}

// Stop tears down the session and its index. Stopping a view with no
// session is a no-op, so repeated or racing stops stay quiet.
func (s *Service) Stop(ctx context.Context, user, view string) error {
	sess, err := s.sessions.Load(ctx, user, view)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}

	if h := sess.IndexHandle(); h != "" {
		if err := s.provider.DeleteIndex(ctx, h); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete index %s: %w", h, err)
		}
	}
	if err := s.sessions.Delete(ctx, sess.User(), sess.View()); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if sess.Active() {
		metrics.ActiveSessions.Dec()
	}
	return nil
}

// obtainIndex reopens the session's index or creates a fresh one. A newly
// created index resets the fingerprint so the criteria are always applied,
// and is persisted on the session before anything else can fail: an index
// no session owns can never be reached by a later stop.
func (s *Service) obtainIndex(ctx context.Context, sess *session.Session, crit criteria.Criteria) (Index, error) {
	if h := sess.IndexHandle(); h != "" {
		idx, err := s.provider.OpenIndex(ctx, h)
		if err == nil {
			return idx, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("open index %s: %w", h, err)
		}
		sess.Clear()
	}

	idx, err := s.provider.CreateIndex(ctx, crit.Folders(), crit.Recurse())
	if err != nil {
		return nil, err
	}
	sess.SetIndexHandle(idx.Handle())
	sess.SetFingerprint(0)
	if err := s.sessions.Save(ctx, sess); err != nil {
		if delErr := s.provider.DeleteIndex(ctx, idx.Handle()); delErr != nil {
			logger.FromContext(ctx).Warn("index cleanup after failed session save",
				zap.String("handle", idx.Handle()), zap.Error(delErr))
		}
		return nil, fmt.Errorf("save session: %w", err)
	}
	return idx, nil
}

// waitFirstBatch polls the index until rows appear, population finishes,
// the wait budget runs out, or the request context is done.
func (s *Service) waitFirstBatch(ctx context.Context, idx Index) (total int, populating bool, err error) {
	deadline := time.Now().Add(s.cfg.WaitBudget)
	for {
		total, err = idx.RowCount(ctx)
		if err != nil {
			return 0, false, fmt.Errorf("row count: %w", err)
		}
		populating, err = idx.Populating(ctx)
		if err != nil {
			return 0, false, fmt.Errorf("populating: %w", err)
		}
		if total > 0 || !populating {
			return total, populating, nil
		}

		pause := s.cfg.PollInterval
		if remaining := time.Until(deadline); remaining <= 0 {
			return total, populating, nil
		} else if remaining < pause {
			pause = remaining
		}
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, false, ctx.Err()
		case <-timer.C:
		}
	}
}

// fallback answers synchronously when the store cannot host an index. No
// session state is touched: there is nothing to poll afterwards.
func (s *Service) fallback(
	ctx context.Context, node query.Node, crit criteria.Criteria, pageSize int,
) (SearchOutput, error) {
	rows, err := s.provider.FilteredList(ctx, node, crit.Folders(), crit.Recurse())
	if err != nil {
		return SearchOutput{}, fmt.Errorf("filtered list: %w", err)
	}
	toSend, _ := delta.Diff(rows, nil, pageSize)

	metrics.SearchesTotal.WithLabelValues("fallback").Inc()
	metrics.RowsTransmittedTotal.Add(float64(len(toSend)))
	return SearchOutput{State: StateFallback, Total: len(rows), Rows: toSend}, nil
}

func (s *Service) fetchAll(ctx context.Context, idx Index, total int) ([]result.Row, error) {
	if total == 0 {
		return nil, nil
	}
	rows, err := idx.FetchRows(ctx, 0, total)
	if err != nil {
		return nil, fmt.Errorf("fetch rows: %w", err)
	}
	return rows, nil
}

func (s *Service) clampPageSize(n int) int {
	if n <= 0 {
		return s.cfg.DefaultPageSize
	}
	if s.cfg.MaxPageSize > 0 && n > s.cfg.MaxPageSize {
		return s.cfg.MaxPageSize
	}
	return n
}

// fingerprint hashes the canonical restriction encoding together with the
// folder scope. Equal fingerprints mean the index needs no re-apply.
func fingerprint(node query.Node, folders []string, recurse bool) uint64 {
	d := xxhash.New()
	_, _ = d.Write(query.Canonical(node))
	_, _ = d.Write([]byte{0})

	sorted := make([]string, len(folders))
	copy(sorted, folders)
	sort.Strings(sorted)
	for _, f := range sorted {
		_, _ = d.WriteString(f)
		_, _ = d.Write([]byte{0})
	}
	if recurse {
		_, _ = d.Write([]byte{1})
	} else {
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

func wrapApplyError(err error) error {
	code := "unknown"
	var bc backendCoder
	if errors.As(err, &bc) {
		code = bc.BackendCode()
	}
	return domain.NewCriteriaApply(code, err)
}
