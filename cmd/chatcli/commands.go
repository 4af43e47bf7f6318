package main

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chat-client/internal/chat"
	"chat-client/internal/logger"
	"chat-client/internal/models"
	"chat-client/internal/presenter"
	"chat-client/internal/realtime"
	"chat-client/internal/session"
	"chat-client/internal/store"
)

func (a *app) register(ctx context.Context, args []string) error {
	fs := newFlags("register")
	var r store.Registration
	fs.StringVar(&r.Phone, "phone", "", "phone number")
	fs.StringVar(&r.FirstName, "first", "", "first name")
	fs.StringVar(&r.LastName, "last", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	u, err := a.newStore("").Users.Register(ctx, r)
	if err != nil {
		return err
	}
	return a.startSession(ctx, u)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlags("login")
	phone := fs.String("phone", "", "phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	u, err := a.newStore("").Users.Login(ctx, *phone)
	if errors.Is(err, store.ErrNotFound) {
		return errors.New("no account for this phone number, use register")
	}
	if err != nil {
		return err
	}
	return a.startSession(ctx, u)
}

func (a *app) startSession(ctx context.Context, u models.User) error {
	if err := a.sessions.Save(ctx, session.Session{User: u, Token: uuid.NewString()}); err != nil {
		return errors.Wrap(err, "save session")
	}
	a.printf("logged in as %s (%s)\n", u.DisplayName(), u.ID)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	s, st, err := a.loggedIn(ctx)
	if err != nil {
		return err
	}
	if err := st.Users.Logout(ctx, s.User.ID); err != nil {
		logger.Warn("presence update failed", zap.Error(err))
	}
	if err := a.sessions.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear session")
	}
	a.printf("logged out\n")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	s, _, err := a.loggedIn(ctx)
	if err != nil {
		return err
	}
	a.printf("%s %s %s\n", s.User.ID, s.User.Phone, s.User.DisplayName())
	return nil
}

func (a *app) chats(ctx context.Context, args []string) error {
	fs := newFlags("chats")
	filter := fs.String("filter", "all", "all, unread, favorites, groups or archived")
	term := fs.String("q", "", "search by name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, _, err := a.service(ctx)
	if err != nil {
		return err
	}
	items, err := svc.Conversations(ctx)
	if err != nil {
		return err
	}
	list := presenter.NewDiscussionList(nil)
	list.SetSource(items)
	list.SetFilter(presenter.ParseFilter(*filter))
	list.SetSearch(*term)
	renderDiscussions(a.out, list.View())
	return nil
}

func (a *app) open(ctx context.Context, args []string) error {
	fs := newFlags("open")
	var tf targetFlags
	tf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, st, err := a.service(ctx)
	if err != nil {
		return err
	}
	t, err := tf.target(ctx, directory{users: st.Users, groups: st.Groups})
	if err != nil {
		return err
	}
	if _, err := svc.Open(ctx, t); err != nil {
		return err
	}
	renderThread(a.out, t, svc.Rows())
	return nil
}

func (a *app) send(ctx context.Context, args []string) error {
	fs := newFlags("send")
	var tf targetFlags
	tf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, st, err := a.service(ctx)
	if err != nil {
		return err
	}
	t, err := tf.target(ctx, directory{users: st.Users, groups: st.Groups})
	if err != nil {
		return err
	}
	if _, err := svc.Open(ctx, t); err != nil {
		return err
	}
	msg, err := svc.Send(ctx, strings.Join(fs.Args(), " "))
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}
	a.printf("sent %s\n", msg.ID)
	return nil
}

func (a *app) contacts(ctx context.Context, args []string) error {
	fs := newFlags("contacts")
	name := fs.String("name", "", "contact name (with -phone adds a contact)")
	phone := fs.String("phone", "", "contact phone")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, st, err := a.loggedIn(ctx)
	if err != nil {
		return err
	}
	if *phone != "" {
		c, err := st.Contacts.Add(ctx, s.User.ID, *name, *phone)
		if err != nil {
			return err
		}
		a.printf("added %s (%s)\n", c.Name, c.ContactUserID)
		return nil
	}
	list, err := st.Contacts.List(ctx, s.User.ID)
	if err != nil {
		return err
	}
	renderContacts(a.out, list)
	return nil
}

func (a *app) group(ctx context.Context, args []string) error {
	fs := newFlags("group")
	name := fs.String("name", "", "group name")
	desc := fs.String("description", "", "group description")
	members := fs.String("members", "", "comma separated member ids")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, st, err := a.loggedIn(ctx)
	if err != nil {
		return err
	}
	g, err := st.Groups.Create(ctx, s.User.ID, *name, *desc, splitIDs(*members))
	if err != nil {
		return err
	}
	a.printf("created group %s (%s), %d members\n", g.Name, g.ID, len(g.Members))
	return nil
}

// watch streams events, falls back to polling, and sends each stdin line to
// the open conversation when one is given.
func (a *app) watch(ctx context.Context, args []string) error {
	fs := newFlags("watch")
	var tf targetFlags
	tf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, st, err := a.service(ctx)
	if err != nil {
		return err
	}
	if err := svc.Reload(ctx); err != nil {
		return err
	}

	var open *session.Target
	if tf.contact != "" || tf.group != "" {
		t, err := tf.target(ctx, directory{users: st.Users, groups: st.Groups})
		if err != nil {
			return err
		}
		if _, err := svc.Open(ctx, t); err != nil {
			return err
		}
		open = &t
	}

	g, ctx := errgroup.WithContext(ctx)
	redraw := func() {
		if open != nil {
			a.frame(func(w io.Writer) { renderThread(w, *open, svc.Rows()) })
			return
		}
		items := svc.Items(ctx)
		a.frame(func(w io.Writer) { renderDiscussions(w, items) })
	}
	refresh := func(fetch func(context.Context) error) func(context.Context) error {
		return func(ctx context.Context) error {
			if err := fetch(ctx); err != nil {
				return err
			}
			redraw()
			return nil
		}
	}
	redraw()

	sub := realtime.NewSubscriber(st.BaseURL(), svc.User().ID, func(ev models.ChatEvent) {
		if svc.HandleEvent(ev) {
			redraw()
		}
	},
		realtime.WithToken(a.current.Token),
		realtime.OnConnect(func() {
			if err := svc.Reload(ctx); err != nil {
				logger.Warn("resync after connect failed", zap.Error(err))
			}
			if open != nil {
				if err := svc.RefreshThread(ctx); err != nil {
					logger.Warn("thread resync after connect failed", zap.Error(err))
				}
			}
			redraw()
		}))
	g.Go(func() error { return sub.Run(ctx) })

	g.Go(func() error {
		return realtime.NewPoller("discussions", interval(a.cfg.DiscussionPollInterval, 10*time.Second), refresh(svc.Reload)).Run(ctx)
	})
	if open != nil {
		g.Go(func() error {
			return realtime.NewPoller("thread", interval(a.cfg.ThreadPollInterval, 5*time.Second), refresh(svc.RefreshThread)).Run(ctx)
		})
		g.Go(func() error { return a.readLines(ctx, svc, redraw) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) readLines(ctx context.Context, svc *chat.Service, redraw func()) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.input())
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			var err error
			if strings.TrimSpace(line) == "/retry" {
				_, err = svc.Retry(ctx)
			} else {
				_, err = svc.Send(ctx, line)
			}
			if err != nil {
				a.printf("! %v\n", err)
				continue
			}
			redraw()
		}
	}
}

func interval(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
