package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"chat-client/internal/chat"
	"chat-client/internal/config"
	"chat-client/internal/models"
	"chat-client/internal/session"
	"chat-client/internal/store"
)

type app struct {
	cfg      *config.Config
	out      io.Writer
	in       io.Reader
	sessions session.Store
	rdb      redis.UniversalClient
	current  session.Session
	// newStore is swapped in tests.
	newStore func(token string) *store.Client

	outMu sync.Mutex
	// last frame drawn by watch; identical frames are not redrawn.
	lastFrame string
}

func newApp(cfg *config.Config, out io.Writer) *app {
	a := &app{cfg: cfg, out: out}
	if cfg.RedisAddr != "" {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		a.sessions = session.NewRedisStore(a.rdb, "chatcli", cfg.SessionTTL)
	} else {
		a.sessions = session.NewFileStore(cfg.SessionDir)
	}
	a.newStore = func(token string) *store.Client {
		opts := []store.Option{}
		if token != "" {
			opts = append(opts, store.WithToken(token))
		}
		if cfg.RequestTimeout > 0 {
			opts = append(opts, store.WithTimeout(cfg.RequestTimeout))
		}
		return store.New(cfg.APIBaseURL, opts...)
	}
	return a
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "chats":
		return a.chats(ctx, args)
	case "open":
		return a.open(ctx, args)
	case "send":
		return a.send(ctx, args)
	case "watch":
		return a.watch(ctx, args)
	case "contacts":
		return a.contacts(ctx, args)
	case "group":
		return a.group(ctx, args)
	case "help", "-h", "--help":
		usage()
		return nil
	}
	return errors.Errorf("unknown command %q", cmd)
}

// loggedIn returns the saved session and a store client carrying its token.
func (a *app) loggedIn(ctx context.Context) (session.Session, *store.Client, error) {
	s, err := a.sessions.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return session.Session{}, nil, store.ErrNotLoggedIn
	}
	if err != nil {
		return session.Session{}, nil, errors.Wrap(err, "load session")
	}
	a.current = s
	return s, a.newStore(s.Token), nil
}

// service wires a chat.Service for the logged-in user.
func (a *app) service(ctx context.Context) (*chat.Service, *store.Client, error) {
	s, st, err := a.loggedIn(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc := chat.NewService(s.User, chat.Deps{
		Messages:    st.Messages,
		Discussions: st.Discussions,
		Groups:      st.Groups,
		Directory:   directory{users: st.Users, groups: st.Groups},
	})
	return svc, st, nil
}

// directory joins the user and group lookups the presenter needs.
type directory struct {
	users  *store.UserClient
	groups *store.GroupClient
}

func (d directory) GetUser(ctx context.Context, id string) (models.User, error) {
	return d.users.Get(ctx, id)
}

func (d directory) GetGroup(ctx context.Context, id string) (models.Group, error) {
	return d.groups.Get(ctx, id)
}

// targetFlags registers -contact and -group on fs.
type targetFlags struct {
	contact string
	group   string
}

func (t *targetFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&t.contact, "contact", "", "user id of the counterpart")
	fs.StringVar(&t.group, "group", "", "group id")
}

func (t targetFlags) target(ctx context.Context, dir directory) (session.Target, error) {
	switch {
	case t.contact != "" && t.group != "":
		return session.Target{}, errors.New("use either -contact or -group")
	case t.group != "":
		name := t.group
		if g, err := dir.GetGroup(ctx, t.group); err == nil {
			name = g.Name
		}
		return session.Target{ID: t.group, IsGroup: true, Name: name}, nil
	case t.contact != "":
		name := t.contact
		if u, err := dir.GetUser(ctx, t.contact); err == nil {
			name = u.DisplayName()
		}
		return session.Target{ID: t.contact, Name: name}, nil
	}
	return session.Target{}, chat.ErrNoConversation
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *app) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

// frame draws fn's output unless it matches the previous frame. Calls from
// concurrent watchers are serialised.
func (a *app) frame(fn func(w io.Writer)) {
	var buf bytes.Buffer
	fn(&buf)
	a.outMu.Lock()
	defer a.outMu.Unlock()
	if buf.String() == a.lastFrame {
		return
	}
	a.lastFrame = buf.String()
	_, _ = a.out.Write(buf.Bytes())
}

func (a *app) input() io.Reader {
	if a.in != nil {
		return a.in
	}
	return os.Stdin
}

func splitIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
