package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dalemusser/inventoryhub/internal/app/apiclient"
	"github.com/dalemusser/inventoryhub/internal/app/membership"
	"github.com/dalemusser/inventoryhub/internal/app/tokencache"
	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"go.uber.org/zap"
)

var (
	errNotSignedIn = errors.New("not signed in; run invctl login first")
	errUsage       = errors.New("usage")
)

// session is the client state every command runs against: the API client
// carrying the cached token, and a reconciler that speaks through it.
type session struct {
	client  *apiclient.Client
	members *membership.Reconciler
	cache   *tokencache.Cache
	out     io.Writer
}

func newSession(cfg config, out io.Writer, logger *zap.Logger) (*session, error) {
	cache, err := tokencache.Open(cfg.Dir, logger)
	if err != nil {
		return nil, err
	}
	client := apiclient.New(cfg.API, cache, logger,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	return &session{
		client:  client,
		members: membership.New(client, logger, membership.WithSettleDelay(cfg.SettleDelay)),
		cache:   cache,
		out:     out,
	}, nil
}

type command struct {
	name  string
	args  string
	about string
	min   int
	max   int
	run   func(ctx context.Context, s *session, cfg config, args []string) error
}

var commands = []command{
	{"login", "", "sign in with --mail and --password", 0, 0,
		func(ctx context.Context, s *session, cfg config, _ []string) error {
			return s.login(ctx, cfg.Mail, cfg.Password)
		}},
	{"register", "", "create an account with --name, --mail and --password", 0, 0,
		func(ctx context.Context, s *session, cfg config, _ []string) error {
			return s.register(ctx, cfg.Name, cfg.Mail, cfg.Password)
		}},
	{"logout", "", "forget the cached session", 0, 0,
		func(_ context.Context, s *session, _ config, _ []string) error { return s.logout() }},
	{"groups", "", "list your groups", 0, 0,
		func(ctx context.Context, s *session, _ config, _ []string) error { return s.groups(ctx) }},
	{"create", "<name> [max]", "create a group and join it", 1, 2,
		func(ctx context.Context, s *session, _ config, args []string) error {
			var userMax *int32
			if len(args) == 2 {
				n, err := strconv.ParseInt(args[1], 10, 32)
				if err != nil || n < 1 {
					return fmt.Errorf("max must be a positive number, got %q", args[1])
				}
				v := int32(n)
				userMax = &v
			}
			return s.create(ctx, args[0], userMax)
		}},
	{"join", "<code>", "join a group by its code", 1, 1,
		func(ctx context.Context, s *session, _ config, args []string) error { return s.join(ctx, args[0]) }},
	{"leave", "<group-id>", "leave a group", 1, 1,
		func(ctx context.Context, s *session, _ config, args []string) error { return s.leave(ctx, args[0]) }},
}

func usage() string {
	var b strings.Builder
	b.WriteString("COMMANDS\n")
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s %s\t%s\n", c.name, c.args, c.about)
	}
	_ = tw.Flush()
	return b.String()
}

// dispatch runs the command named by args[0].
func (s *session) dispatch(ctx context.Context, cfg config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: invctl [flags] <command>\n%s", errUsage, usage())
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		rest := args[1:]
		if len(rest) < c.min || len(rest) > c.max {
			return fmt.Errorf("%w: invctl %s %s", errUsage, c.name, c.args)
		}
		return c.run(ctx, s, cfg, rest)
	}
	return fmt.Errorf("unknown command %q\n%s", args[0], usage())
}

func (s *session) login(ctx context.Context, mail, password string) error {
	if mail == "" || password == "" {
		return fmt.Errorf("%w: invctl --mail <mail> --password <password> login", errUsage)
	}
	sess, err := s.client.Login(ctx, mail, password)
	if err != nil {
		return err
	}
	return s.remember(sess)
}

func (s *session) register(ctx context.Context, name, mail, password string) error {
	if name == "" || mail == "" || password == "" {
		return fmt.Errorf("%w: invctl --name <name> --mail <mail> --password <password> register", errUsage)
	}
	sess, err := s.client.Register(ctx, name, mail, password)
	if err != nil {
		return err
	}
	return s.remember(sess)
}

func (s *session) remember(sess apiclient.Session) error {
	err := s.cache.Save(tokencache.Entry{
		Token:  sess.Token,
		UserID: sess.User.ID.Hex(),
		Mail:   sess.User.Mail,
		Name:   sess.User.Name,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "signed in as %s <%s>\n", sess.User.Name, sess.User.Mail)
	return nil
}

func (s *session) logout() error {
	if err := s.cache.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "signed out")
	return nil
}

// user returns the cached account.
func (s *session) user() (tokencache.Entry, error) {
	e, err := s.cache.Load()
	if errors.Is(err, tokencache.ErrNoSession) {
		return e, errNotSignedIn
	}
	return e, err
}

func (s *session) groups(ctx context.Context) error {
	u, err := s.user()
	if err != nil {
		return err
	}
	groups, err := s.members.GroupsForUser(ctx, u.UserID)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Fprintln(s.out, "no groups")
		return nil
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCODE\tMEMBERS")
	for _, g := range groups {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.ID.Hex(), g.Name, g.GroupCode, members(g))
	}
	return tw.Flush()
}

func members(g models.Group) string {
	if g.UserMax == nil {
		return strconv.Itoa(int(g.UserCount))
	}
	return fmt.Sprintf("%d/%d", g.UserCount, *g.UserMax)
}

func (s *session) create(ctx context.Context, name string, userMax *int32) error {
	u, err := s.user()
	if err != nil {
		return err
	}
	g, err := s.members.CreateGroup(ctx, u.UserID, name, userMax)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "created %s (%s), join code %s\n", g.Name, g.ID.Hex(), g.GroupCode)
	return nil
}

func (s *session) join(ctx context.Context, code string) error {
	u, err := s.user()
	if err != nil {
		return err
	}
	g, err := s.members.JoinByCode(ctx, u.UserID, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "joined %s (%s members)\n", g.Name, members(g))
	return nil
}

func (s *session) leave(ctx context.Context, groupID string) error {
	u, err := s.user()
	if err != nil {
		return err
	}
	g, err := s.members.Leave(ctx, u.UserID, groupID)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "left %s\n", g.Name)
	if g.UserCount == 0 {
		fmt.Fprintln(s.out, "the group has no members left")
	}
	return nil
}
