package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/groupmesh/incsearch/internal/domain"
	"github.com/groupmesh/incsearch/internal/domain/criteria"
	"github.com/groupmesh/incsearch/internal/domain/query"
	"github.com/groupmesh/incsearch/internal/domain/result"
	"github.com/groupmesh/incsearch/internal/domain/schema"
	"github.com/groupmesh/incsearch/internal/domain/session"
)

type fakeIndex struct {
	handle     string
	rows       []result.Row
	populating bool

	applies     int
	lastNode    query.Node
	applyErr    error
	rowCountErr error

	// readyAfter flips populating off once RowCount has been called that
	// many times, simulating slow asynchronous population.
	polls      int
	readyAfter int
	readyRows  []result.Row
}

func (f *fakeIndex) Handle() string { return f.handle }

func (f *fakeIndex) SetCriteria(_ context.Context, node query.Node) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applies++
	f.lastNode = node
	return nil
}

func (f *fakeIndex) RowCount(context.Context) (int, error) {
	if f.rowCountErr != nil {
		return 0, f.rowCountErr
	}
	f.polls++
	if f.readyAfter > 0 && f.polls >= f.readyAfter {
		f.rows = f.readyRows
		f.populating = false
	}
	return len(f.rows), nil
}

func (f *fakeIndex) Populating(context.Context) (bool, error) {
	return f.populating, nil
}

func (f *fakeIndex) FetchRows(_ context.Context, offset, limit int) ([]result.Row, error) {
	if offset >= len(f.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[offset:end], nil
}

type fakeProvider struct {
	createErr    error
	created      int
	indexes      map[string]*fakeIndex
	nextIndex    *fakeIndex
	filteredRows []result.Row
	filteredNode query.Node
	deleted      []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{indexes: make(map[string]*fakeIndex)}
}

func (p *fakeProvider) CreateIndex(context.Context, []string, bool) (Index, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created++
	idx := p.nextIndex
	if idx == nil {
		idx = &fakeIndex{}
	}
	if idx.handle == "" {
		idx.handle = fmt.Sprintf("idx-%d", p.created)
	}
	p.indexes[idx.handle] = idx
	p.nextIndex = nil
	return idx, nil
}

func (p *fakeProvider) OpenIndex(_ context.Context, handle string) (Index, error) {
	idx, ok := p.indexes[handle]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return idx, nil
}

func (p *fakeProvider) DeleteIndex(_ context.Context, handle string) error {
	delete(p.indexes, handle)
	p.deleted = append(p.deleted, handle)
	return nil
}

func (p *fakeProvider) FilteredList(_ context.Context, node query.Node, _ []string, _ bool) ([]result.Row, error) {
	p.filteredNode = node
	return p.filteredRows, nil
}

// fakeSessions copies on load and save the way a real store would, so
// pointer aliasing cannot mask missing saves.
type fakeSessions struct {
	data map[string]*session.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{data: make(map[string]*session.Session)}
}

func snapshot(s *session.Session) *session.Session {
	transmitted := make(map[string]int64, len(s.Transmitted()))
	for k, v := range s.Transmitted() {
		transmitted[k] = v
	}
	return session.Reconstruct(s.User(), s.View(), s.IndexHandle(), s.Fingerprint(), transmitted, s.Active())
}

func (f *fakeSessions) Load(_ context.Context, user, view string) (*session.Session, error) {
	s, ok := f.data[user+"|"+view]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return snapshot(s), nil
}

func (f *fakeSessions) Save(_ context.Context, s *session.Session) error {
	f.data[s.User()+"|"+s.View()] = snapshot(s)
	return nil
}

func (f *fakeSessions) Delete(_ context.Context, user, view string) error {
	delete(f.data, user+"|"+view)
	return nil
}

func testConfig() Config {
	return Config{
		PollInterval:    time.Millisecond,
		WaitBudget:      50 * time.Millisecond,
		DefaultPageSize: 100,
		MaxPageSize:     500,
	}
}

func mustCriteria(t *testing.T, freeText string) criteria.Criteria {
	t.Helper()
	c, err := criteria.New(freeText, nil, criteria.MatchAny, "", criteria.DateRange{}, []string{"contacts"}, false)
	if err != nil {
		t.Fatalf("criteria.New: %v", err)
	}
	return c
}

func row(id string, stamp int64) result.Row {
	return result.New(id, stamp, nil)
}

func TestSearch_FreshSessionAppliesCriteriaOnce(t *testing.T) {
	provider := newFakeProvider()
	idx := &fakeIndex{rows: []result.Row{row("c1", 1), row("c2", 2)}}
	provider.nextIndex = idx
	sessions := newFakeSessions()
	svc := NewService(provider, sessions, testConfig())

	out, err := svc.Search(context.Background(), "alice", "v", mustCriteria(t, "jane"), schema.Contacts(), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if idx.applies != 1 {
		t.Errorf("criteria applied %d times, want 1", idx.applies)
	}
	if out.State != StateComplete || out.Total != 2 || len(out.Rows) != 2 {
		t.Errorf("out = %+v", out)
	}
	if out.Handle != idx.handle {
		t.Errorf("handle = %q, want %q", out.Handle, idx.handle)
	}

	saved, err := sessions.Load(context.Background(), "alice", "v")
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if !saved.Active() || saved.IndexHandle() != idx.handle {
		t.Errorf("session = active:%v handle:%q", saved.Active(), saved.IndexHandle())
	}
	if saved.Transmitted()["c2"] != 2 {
		t.Errorf("transmitted = %v", saved.Transmitted())
	}
}

func TestSearch_SameCriteriaSkipsReapply(t *testing.T) {
	provider := newFakeProvider()
	idx := &fakeIndex{rows: []result.Row{row("c1", 1)}}
	provider.nextIndex = idx
	sessions := newFakeSessions()
	svc := NewService(provider, sessions, testConfig())

	crit := mustCriteria(t, "jane")
	if _, err := svc.Search(context.Background(), "alice", "v", crit, schema.Contacts(), 0); err != nil {
		t.Fatalf("first Search: %v", err)
	}
	out, err := svc.Search(context.Background(), "alice", "v", crit, schema.Contacts(), 0)
	if err != nil {
		t.Fatalf("second Search: %v", err)
	}

	if idx.applies != 1 {
		t.Errorf("criteria applied %d times, want exactly 1", idx.applies)
	}
	if provider.created != 1 {
		t.Errorf("indexes created = %d, want 1", provider.created)
	}
	// The transmitted set was reset, so the same rows go out again.
	if len(out.Rows) != 1 || out.Rows[0].ID() != "c1" {
		t.Errorf("restart did not resend rows: %+v", out.Rows)
	}
}

func TestSearch_ChangedCriteriaReapplies(t *testing.T) {
	provider := newFakeProvider()
	idx := &fakeIndex{rows: []result.Row{row("c1", 1)}}
	provider.nextIndex = idx
	sessions := newFakeSessions()
	svc := NewService(provider, sessions, testConfig())

	if _, err := svc.Search(context.Background(), "alice", "v", mustCriteria(t, "jane"), schema.Contacts(), 0); err != nil {
		t.Fatalf("first Search: %v", err)
	}
	if _, err := svc.Search(context.Background(), "alice", "v", mustCriteria(t, "bob"), schema.Contacts(), 0); err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if idx.applies != 2 {
		t.Errorf("criteria applied %d times, want 2", idx.applies)
	}
	if provider.created != 1 {
		t.Errorf("index recreated needlessly: created = %d", provider.created)
	}
}

func TestSearch_EmptyCriteriaRejected(t *testing.T) {
	svc := NewService(newFakeProvider(), newFakeSessions(), testConfig())
	c, err := criteria.New("", nil, criteria.MatchAny, "", criteria.DateRange{}, []string{"contacts"}, false)
	if err != nil {
		t.Fatalf("criteria.New: %v", err)
	}
	_, err = svc.Search(context.Background(), "alice", "v", c, schema.Contacts(), 0)
	if !errors.Is(err, domain.ErrCriteriaParse) {
		t.Fatalf("want ErrCriteriaParse, got %v", err)
	}
}

func TestSearch_FallbackWhenIndexUnavailable(t *testing.T) {
	provider := newFakeProvider()
	provider.createErr = domain.ErrIndexUnavailable
	provider.filteredRows = []result.Row{row("c1", 1), row("c2", 2)}
	sessions := newFakeSessions()
	svc := NewService(provider, sessions, testConfig())

	out, err := svc.Search(context.Background(), "alice", "v", mustCriteria(t, "jane"), schema.Contacts(), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if out.State != StateFallback {
		t.Errorf("state = %q, want fallback", out.State)
	}
	if out.Handle != "" {
		t.Errorf("fallback returned a handle: %q", out.Handle)
	}
	if out.Total != 2 || len(out.Rows) != 2 {
		t.Errorf("out = %+v", out)
	}
	if provider.filteredNode == nil {
		t.Error("FilteredList never saw the restriction")
	}
	// Fallback keeps no state: nothing to poll later.
	if _, err := sessions.Load(context.Background(), "alice", "v"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("fallback persisted a session: %v", err)
	}
}

type codedErr struct{}

func (codedErr) Error() string       { return "store rejected restriction" }
func (codedErr) BackendCode() string { return "ecNotSupported" }

func TestSearch_CriteriaApplyFailureForcesRetry(t *testing.T) {
	provider := newFakeProvider()
	idx := &fakeIndex{applyErr: codedErr{}}
	provider.nextIndex = idx
	sessions := newFakeSessions()
	svc := NewService(provider, sessions, testConfig())

	crit := mustCriteria(t, "jane")
	_, err := svc.Search(context.Background(), "alice", "v", crit, schema.Contacts(), 0)
	if !errors.Is(err, domain.ErrCriteriaApply) {
		t.Fatalf("want ErrCriteriaApply, got %v", err)
	}
	var applyErr *domain.CriteriaApplyError
	if !errors.As(err, &applyErr) || applyErr.BackendCode != "ecNotSupported" {
		t.Fatalf("backend code lost: %v", err)
	}

	// The fingerprint stayed unapplied, so the retry applies again.
	idx.applyErr = nil
	if _, err := svc.Search(context.Background(), "alice", "v", crit, schema.Contacts(), 0); err != nil {
		t.Fatalf("retry Search: %v", err)
	}
	if idx.applies != 1 {
		t.Errorf("retry applied %d times, want 1", idx.applies)
	}
	if provider.created != 1 {
		t.Errorf("retry recreated the index: created = %d", provider.created)
	}
}

func TestSearch_FailedFirstWaitKeepsIndexOwned(t *testing.T) {
	provider := newFakeProvider()
	idx := &fakeIndex{populating: true, rowCountErr: errors.New("store offline")}
	provider.nextIndex = idx
	sessions := newFakeSessions()
	svc := NewService(provider, sessions, testConfig())

	if _, err := svc.Search(context.Background(), "alice", "v", mustCriteria(t, "jane"), schema.Contacts(), 0); err == nil {
		t.Fatal("Search succeeded despite failing index")
	}

	// The session owns the index even though the search failed, so stop
	// can still tear it down instead of leaking it in the provider.
	saved, err := sessions.Load(context.Background(), "alice", "v")
	if err != nil {
		t.Fatalf("session not persisted on failure: %v", err)
	}
	if saved.IndexHandle() != idx.handle {
		t.Fatalf("session handle = %q, want %q", saved.IndexHandle(), idx.handle)
	}

	if err := svc.Stop(context.Background(), "alice", "v"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(provider.deleted) != 1 || provider.deleted[0] != idx.handle {
		t.Errorf("index not torn down: deleted = %v", provider.deleted)
	}
	if len(provider.indexes) != 0 {
		t.Errorf("indexes left behind: %d", len(provider.indexes))
	}
}

func TestSearch_WaitsForFirstRows(t *testing.T) {
	provider := newFakeProvider()
	idx := &fakeIndex{populating: true, readyAfter: 3, readyRows: []result.Row{row("c1", 1)}}
	provider.nextIndex = idx
	svc := NewService(provider, newFakeSessions(), testConfig())

	out, err := svc.Search(context.Background(), "alice", "v", mustCriteria(t, "jane"), schema.Contacts(), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if out.State != StateComplete || len(out.Rows) != 1 {
		t.Errorf("out = %+v", out)
	}
	if idx.polls < 3 {
		t.Errorf("polls = %d, want at least 3", idx.polls)
	}
}

func TestSearch_WaitBudgetBounds(t *testing.T) {
	provider := newFakeProvider()
	// Never produces rows, never finishes.
	provider.nextIndex = &fakeIndex{populating: true}
	svc := NewService(provider, newFakeSessions(), testConfig())

	start := time.Now()
	out, err := svc.Search(context.Background(), "alice", "v", mustCriteria(t, "jane"), schema.Contacts(), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("search blocked %v, budget was 50ms", elapsed)
	}
	if out.State != StateRunning || len(out.Rows) != 0 {
		t.Errorf("out = %+v, want running with no rows", out)
	}
}

func TestSearch_ContextCancelStopsWait(t *testing.T) {
	provider := newFakeProvider()
	provider.nextIndex = &fakeIndex{populating: true}
	cfg := testConfig()
	cfg.WaitBudget = time.Hour
	svc := NewService(provider, newFakeSessions(), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := svc.Search(ctx, "alice", "v", mustCriteria(t, "jane"), schema.Contacts(), 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}
}

func TestUpdate_ReturnsOnlyNewAndChangedRows(t *testing.T) {
	provider := newFakeProvider()
	idx := &fakeIndex{rows: []result.Row{row("c1", 1), row("c2", 2)}}
	provider.nextIndex = idx
	sessions := newFakeSessions()
	svc := NewService(provider, sessions, testConfig())

	if _, err := svc.Search(context.Background(), "alice", "v", mustCriteria(t, "jane"), schema.Contacts(), 0); err != nil {
		t.Fatalf("Search: %v", err)
	}

	// c3 arrives, c1 is modified, c2 is untouched.
	idx.rows = []result.Row{row("c1", 5), row("c2", 2), row("c3", 4)}

	out, err := svc.Update(context.Background(), "alice", "v", 0)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !out.Active {
		t.Fatal("session reported inactive")
	}
	if out.Total != 3 || len(out.Rows) != 2 {
		t.Fatalf("out = %+v, want 2 of 3 rows", out)
	}
	got := map[string]bool{}
	for _, r := range out.Rows {
		got[r.ID()] = true
	}
	if !got["c1"] || !got["c3"] || got["c2"] {
		t.Errorf("rows = %v", got)
	}

	// Nothing changed since: the next poll is empty.
	out, err = svc.Update(context.Background(), "alice", "v", 0)
	if err != nil {
		t.Fatalf("second Update: %v", err)
	}
	if len(out.Rows) != 0 {
		t.Errorf("idle poll returned rows: %+v", out.Rows)
	}
}

func TestUpdate_PageCapHoldsRemainderForNextPoll(t *testing.T) {
	provider := newFakeProvider()
	idx := &fakeIndex{rows: []result.Row{row("a", 1), row("b", 2), row("c", 3)}}
	provider.nextIndex = idx
	svc := NewService(provider, newFakeSessions(), testConfig())

	out, err := svc.Search(context.Background(), "alice", "v", mustCriteria(t, "jane"), schema.Contacts(), 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(out.Rows) != 2 || out.Total != 3 {
		t.Fatalf("first page = %+v", out)
	}

	upd, err := svc.Update(context.Background(), "alice", "v", 2)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(upd.Rows) != 1 || upd.Rows[0].ID() != "c" {
		t.Errorf("second page = %+v", upd.Rows)
	}
}

func TestUpdate_InactiveSessionIsBenign(t *testing.T) {
	svc := NewService(newFakeProvider(), newFakeSessions(), testConfig())
	out, err := svc.Update(context.Background(), "alice", "v", 0)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if out.Active {
		t.Error("unknown session reported active")
	}
}

func TestUpdate_VanishedIndexDropsSession(t *testing.T) {
	provider := newFakeProvider()
	idx := &fakeIndex{rows: []result.Row{row("c1", 1)}}
	provider.nextIndex = idx
	sessions := newFakeSessions()
	svc := NewService(provider, sessions, testConfig())

	if _, err := svc.Search(context.Background(), "alice", "v", mustCriteria(t, "jane"), schema.Contacts(), 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	delete(provider.indexes, idx.handle)

	out, err := svc.Update(context.Background(), "alice", "v", 0)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if out.Active {
		t.Error("vanished index still reported active")
	}
	if _, err := sessions.Load(context.Background(), "alice", "v"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("stale session kept: %v", err)
	}
}

func TestStop_TearsDownAndStaysIdempotent(t *testing.T) {
	provider := newFakeProvider()
	idx := &fakeIndex{rows: []result.Row{row("c1", 1)}}
	provider.nextIndex = idx
	sessions := newFakeSessions()
	svc := NewService(provider, sessions, testConfig())

	if _, err := svc.Search(context.Background(), "alice", "v", mustCriteria(t, "jane"), schema.Contacts(), 0); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if err := svc.Stop(context.Background(), "alice", "v"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(provider.deleted) != 1 || provider.deleted[0] != idx.handle {
		t.Errorf("deleted = %v", provider.deleted)
	}
	if _, err := sessions.Load(context.Background(), "alice", "v"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("session survived stop: %v", err)
	}

	// Stop without a session is quiet.
	if err := svc.Stop(context.Background(), "alice", "v"); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	// The next update is a benign no-op, not an error.
	out, err := svc.Update(context.Background(), "alice", "v", 0)
	if err != nil || out.Active {
		t.Fatalf("update after stop: out=%+v err=%v", out, err)
	}
}

func TestSearch_PageSizeClamped(t *testing.T) {
	provider := newFakeProvider()
	rows := make([]result.Row, 10)
	for i := range rows {
		rows[i] = row(fmt.Sprintf("r%d", i), int64(i+1))
	}
	provider.nextIndex = &fakeIndex{rows: rows}
	cfg := testConfig()
	cfg.DefaultPageSize = 4
	cfg.MaxPageSize = 6
	svc := NewService(provider, newFakeSessions(), cfg)

	out, err := svc.Search(context.Background(), "alice", "v", mustCriteria(t, "jane"), schema.Contacts(), 1000)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(out.Rows) != 6 {
		t.Errorf("oversized request returned %d rows, want max 6", len(out.Rows))
	}
}
