package conversation_test

import (
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/conversation"
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/session"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type forwarded struct {
	From, To models.UserID
	Msg      models.Message
}

// recordingGateway stores everything sent through it. Users in unreachable fail.
type recordingGateway struct {
	mu          sync.Mutex
	texts       map[models.UserID][]string
	forwards    []forwarded
	unreachable map[models.UserID]bool
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{
		texts:       make(map[models.UserID][]string),
		unreachable: make(map[models.UserID]bool),
	}
}

func (g *recordingGateway) SendText(_ context.Context, to models.UserID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unreachable[to] {
		return chathub.ErrRecipientUnreachable
	}
	g.texts[to] = append(g.texts[to], text)
	return nil
}

func (g *recordingGateway) Forward(_ context.Context, from, to models.UserID, msg models.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unreachable[to] {
		return chathub.ErrRecipientUnreachable
	}
	g.forwards = append(g.forwards, forwarded{From: from, To: to, Msg: msg})
	return nil
}

func (g *recordingGateway) setUnreachable(id models.UserID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unreachable[id] = true
}

func (g *recordingGateway) setReachable(id models.UserID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.unreachable, id)
}

func (g *recordingGateway) last(id models.UserID) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	texts := g.texts[id]
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (g *recordingGateway) all(id models.UserID) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.texts[id]...)
}

func (g *recordingGateway) forwardsTo(id models.UserID) []forwarded {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []forwarded
	for _, f := range g.forwards {
		if f.To == id {
			out = append(out, f)
		}
	}
	return out
}

type fakeJournal struct {
	mu     sync.Mutex
	opened map[string][2]models.UserID
	closed map[string]string
}

func (j *fakeJournal) OpenRoom(_ context.Context, roomID string, a, b models.UserID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.opened[roomID] = [2]models.UserID{a, b}
	return nil
}

func (j *fakeJournal) CloseRoom(_ context.Context, roomID, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed[roomID] = reason
	return nil
}

type testEnv struct {
	t       *testing.T
	machine *conversation.Machine
	gw      *recordingGateway
	store   *session.Store
	matcher *chathub.Matcher
	loc     *localization.Localizer
	journal *fakeJournal
}

func newTestEnv(t *testing.T, admins ...models.UserID) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	loc, err := localization.NewDefault("en")
	require.NoError(t, err)

	gw := newRecordingGateway()
	store := session.NewStore(nil)
	matcher := chathub.NewMatcherService(store, log)
	journal := &fakeJournal{opened: map[string][2]models.UserID{}, closed: map[string]string{}}

	machine := conversation.NewMachine(conversation.Deps{
		Sessions:    store,
		Matcher:     matcher,
		Relay:       chathub.NewRelay(matcher, gw, log),
		Broadcaster: chathub.NewBroadcaster(matcher, gw, chathub.NewAdminSet(admins...), 2, log),
		Gateway:     gw,
		Localizer:   loc,
		Journal:     journal,
		Log:         log,
	})

	return &testEnv{t: t, machine: machine, gw: gw, store: store, matcher: matcher, loc: loc, journal: journal}
}

// event builds what a transport would produce for a line of user input.
func event(id models.UserID, text string) models.Event {
	ev := models.Event{
		UserID:  id,
		Kind:    models.EventText,
		Message: models.Message{Kind: models.KindText, Text: text},
	}
	if strings.HasPrefix(text, "/") {
		ev.Kind = models.EventCommand
		cmd, args, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
		ev.Command = cmd
		ev.Args = strings.TrimSpace(args)
	}
	return ev
}

func (e *testEnv) send(id models.UserID, text string) {
	e.t.Helper()
	require.NoError(e.t, e.machine.Handle(context.Background(), event(id, text)))
}

func (e *testEnv) handle(ev models.Event) {
	e.t.Helper()
	require.NoError(e.t, e.machine.Handle(context.Background(), ev))
}

func (e *testEnv) onboard(ids ...models.UserID) {
	for _, id := range ids {
		e.send(id, "/start")
		e.send(id, "nick-"+string(id))
	}
}

func (e *testEnv) text(key string, args ...any) string {
	return e.loc.Format("en", key, args...)
}
