package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/access"
	"github.com/stemsi/conduct-console/internal/apperr"
	"github.com/stemsi/conduct-console/internal/conduct"
	"github.com/stemsi/conduct-console/internal/config"
	"github.com/stemsi/conduct-console/internal/credstore"
	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/session"
	"github.com/stemsi/conduct-console/internal/transport"
	"golang.org/x/term"
)

// app is one console run: a session plus the services layered on it.
type app struct {
	cli     cliConfig
	session *session.Manager
	gate    *access.Gate
	conduct *conduct.Service
	in      *bufio.Reader
	stdin   io.Reader
	out     io.Writer
	log     zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, cli cliConfig, in io.Reader, out io.Writer, log zerolog.Logger) (*app, func(), error) {
	if cli.server != "" {
		cfg.APIBaseURL = strings.TrimRight(cli.server, "/")
	}
	if cli.ephemeral {
		cfg.CredentialStore = config.StoreMemory
	}

	store, closeStore, err := credstore.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	var once sync.Once
	closeFn := func() {
		once.Do(func() {
			if err := closeStore(); err != nil {
				log.Debug().Err(err).Msg("Closing credential store")
			}
		})
	}

	client := transport.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, transport.WithLogger(log))
	mgr := session.NewManager(client, store, log,
		session.WithRefreshTimeout(cfg.RefreshTimeout),
		session.WithLogoutTimeout(cfg.LogoutTimeout),
		session.WithIdentityCache(cfg.CacheIdentity),
	)

	return &app{
		cli:     cli,
		session: mgr,
		gate:    access.NewGate(mgr),
		conduct: conduct.NewService(mgr),
		in:      bufio.NewReader(in),
		stdin:   in,
		out:     out,
		log:     log,
	}, closeFn, nil
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.runLogin(ctx, args)
	case "logout":
		return a.runLogout(ctx, args)
	case "whoami":
		return a.runWhoami(ctx, args)
	case "menu":
		return a.runMenu(ctx, args)
	case "classrooms":
		return a.runClassrooms(ctx, args)
	case "students":
		return a.runStudents(ctx, args)
	case "event-types":
		return a.runEventTypes(ctx, args)
	case "events":
		return a.runEvents(ctx, args)
	case "event":
		return a.runEvent(ctx, args)
	case "permission":
		return a.runPermission(ctx, args)
	case "grant":
		return a.runGrant(ctx, args)
	case "revoke":
		return a.runRevoke(ctx, args)
	case "request":
		return a.runRequest(ctx, args)
	case "shell":
		return a.runShell(ctx, args)
	case "version":
		fmt.Fprintf(a.out, "console %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	case "help":
		printUsage(a.out)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// identity resumes the stored session and returns its verified identity.
func (a *app) identity(ctx context.Context) (model.Identity, error) {
	if a.session.State() == session.StateExpired {
		return model.Identity{}, apperr.ErrSessionExpired
	}
	restored, err := a.session.Restore(ctx)
	if err != nil {
		return model.Identity{}, err
	}
	if restored == nil {
		return model.Identity{}, apperr.New(apperr.KindUnauthenticated, "you are not signed in")
	}
	return a.session.VerifiedIdentity(ctx)
}

func (a *app) runLogin(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: console login [username]")
	}

	username := ""
	if len(args) == 1 {
		username = args[0]
	} else {
		fmt.Fprint(a.out, "Username: ")
		line, err := a.in.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	password, err := a.readPassword()
	if err != nil {
		return err
	}

	identity, err := a.session.Login(ctx, username, password)
	if err != nil {
		return err
	}

	if a.cli.jsonOutput {
		return PrintJSON(a.out, identity)
	}
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", identity.DisplayName, identity.Role)
	return nil
}

func (a *app) readPassword() (string, error) {
	if pw := os.Getenv("CONSOLE_PASSWORD"); pw != "" {
		return pw, nil
	}

	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.out, "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) runLogout(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: console logout")
	}
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *app) runWhoami(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: console whoami")
	}
	identity, err := a.identity(ctx)
	if err != nil {
		return err
	}
	if a.cli.jsonOutput {
		return PrintJSON(a.out, identity)
	}
	RenderTable(a.out, []string{"ID", "USERNAME", "NAME", "ROLE"}, [][]string{{
		strconv.Itoa(identity.ID), identity.Username, identity.DisplayName, string(identity.Role),
	}})
	return nil
}

func (a *app) runMenu(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: console menu")
	}
	identity, err := a.identity(ctx)
	if err != nil {
		return err
	}
	sections := a.gate.Sections(&identity)
	if a.cli.jsonOutput {
		return PrintJSON(a.out, sections)
	}
	rows := make([][]string, 0, len(sections))
	for _, s := range sections {
		rows = append(rows, []string{s.Key, s.Label, s.Path})
	}
	RenderTable(a.out, []string{"KEY", "SECTION", "PATH"}, rows)
	return nil
}

func (a *app) runClassrooms(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: console classrooms")
	}
	if _, err := a.identity(ctx); err != nil {
		return err
	}
	classrooms, err := a.conduct.Classrooms(ctx)
	if err != nil {
		return err
	}
	if a.cli.jsonOutput {
		return PrintJSON(a.out, classrooms)
	}
	rows := make([][]string, 0, len(classrooms))
	for _, c := range classrooms {
		rows = append(rows, []string{strconv.Itoa(c.ID), c.Name, strconv.Itoa(c.GradeLevel), DashIfEmpty(c.TeacherName)})
	}
	RenderTable(a.out, []string{"ID", "NAME", "GRADE", "TEACHER"}, rows)
	return nil
}

func (a *app) runStudents(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: console students [classroom-id]")
	}
	classroomID, err := optionalID(args, 0, "classroom-id")
	if err != nil {
		return err
	}
	if _, err := a.identity(ctx); err != nil {
		return err
	}
	students, err := a.conduct.Students(ctx, classroomID)
	if err != nil {
		return err
	}
	if a.cli.jsonOutput {
		return PrintJSON(a.out, students)
	}
	rows := make([][]string, 0, len(students))
	for _, s := range students {
		rows = append(rows, []string{
			strconv.Itoa(s.ID), s.StudentCode, s.Name, strconv.Itoa(s.ClassroomID), strconv.Itoa(s.Points),
		})
	}
	RenderTable(a.out, []string{"ID", "CODE", "NAME", "CLASSROOM", "POINTS"}, rows)
	return nil
}

func (a *app) runEventTypes(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: console event-types")
	}
	if _, err := a.identity(ctx); err != nil {
		return err
	}
	types, err := a.conduct.EventTypes(ctx)
	if err != nil {
		return err
	}
	if a.cli.jsonOutput {
		return PrintJSON(a.out, types)
	}
	rows := make([][]string, 0, len(types))
	for _, t := range types {
		rows = append(rows, []string{strconv.Itoa(t.ID), t.Name, FormatPoints(t.Points), DashIfEmpty(t.Description)})
	}
	RenderTable(a.out, []string{"ID", "NAME", "POINTS", "DESCRIPTION"}, rows)
	return nil
}

func (a *app) runEvents(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: console events [student-id]")
	}
	studentID, err := optionalID(args, 0, "student-id")
	if err != nil {
		return err
	}
	if _, err := a.identity(ctx); err != nil {
		return err
	}
	events, err := a.conduct.Events(ctx, studentID)
	if err != nil {
		return err
	}
	a.printEvents(events)
	return nil
}

func (a *app) printEvents(events []model.Event) {
	if a.cli.jsonOutput {
		_ = PrintJSON(a.out, events)
		return
	}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			strconv.Itoa(e.ID),
			strconv.Itoa(e.StudentID),
			DashIfEmpty(e.EventTypeName),
			FormatPoints(e.Points),
			Truncate(DashIfEmpty(e.Note), 40),
			FormatTime(e.CreatedAt),
		})
	}
	RenderTable(a.out, []string{"ID", "STUDENT", "TYPE", "POINTS", "NOTE", "RECORDED"}, rows)
}

func (a *app) runEvent(ctx context.Context, args []string) error {
	if len(args) < 2 || args[0] != "create" {
		return fmt.Errorf("usage: console event create <type-id> [--student <id>] [note...]")
	}
	typeID, err := strconv.Atoi(args[1])
	if err != nil || typeID <= 0 {
		return apperr.New(apperr.KindInvalidRequest, "type-id must be a positive integer")
	}

	studentID := 0
	rest := args[2:]
	if len(rest) >= 2 && rest[0] == "--student" {
		if studentID, err = strconv.Atoi(rest[1]); err != nil || studentID <= 0 {
			return apperr.New(apperr.KindInvalidRequest, "--student must be a positive integer")
		}
		rest = rest[2:]
	}
	note := strings.Join(rest, " ")

	identity, err := a.identity(ctx)
	if err != nil {
		return err
	}

	var event *model.Event
	if identity.Role == model.RoleStudent {
		event, err = a.gate.CreateOwnEvent(ctx, identity, typeID, note)
	} else {
		if studentID == 0 {
			return apperr.New(apperr.KindInvalidRequest, "--student is required when recording for someone else")
		}
		event, err = a.conduct.CreateEvent(ctx, model.CreateEventRequest{
			StudentID:   studentID,
			EventTypeID: typeID,
			Note:        note,
		})
	}
	if err != nil {
		return err
	}

	if a.cli.jsonOutput {
		return PrintJSON(a.out, event)
	}
	fmt.Fprintf(a.out, "Recorded event %d (%s, %s points)\n", event.ID, event.EventTypeName, FormatPoints(event.Points))
	return nil
}

func (a *app) runPermission(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: console permission")
	}
	identity, err := a.identity(ctx)
	if err != nil {
		return err
	}
	decision, err := a.gate.CheckEventPermission(ctx, identity)
	if err != nil {
		return err
	}
	if a.cli.jsonOutput {
		return PrintJSON(a.out, decision)
	}

	fmt.Fprintf(a.out, "%s\n", ColorOutcome(decision.Outcome))
	fmt.Fprintln(a.out, decision.Message)
	if g := decision.Grant; g != nil {
		expires := "never"
		if g.ExpiresAt != nil {
			expires = FormatTime(*g.ExpiresAt)
		}
		fmt.Fprintf(a.out, "Granted by %s on %s, expires %s\n",
			DashIfEmpty(g.GrantedByName), FormatTime(g.GrantedAt), expires)
	}
	return nil
}

func (a *app) runGrant(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: console grant <student-id> [days] [notes...]")
	}
	studentID, err := requiredID(args[0], "student-id")
	if err != nil {
		return err
	}
	validFor := time.Duration(0)
	notes := ""
	if len(args) > 1 {
		days, err := strconv.Atoi(args[1])
		if err != nil || days < 0 {
			return apperr.New(apperr.KindInvalidRequest, "days must be a non-negative integer")
		}
		validFor = time.Duration(days) * 24 * time.Hour
		notes = strings.Join(args[2:], " ")
	}

	if _, err := a.identity(ctx); err != nil {
		return err
	}
	grant, err := a.conduct.GrantEventPermission(ctx, studentID, validFor, notes)
	if err != nil {
		return err
	}
	if a.cli.jsonOutput {
		return PrintJSON(a.out, grant)
	}
	expires := "never"
	if grant.ExpiresAt != nil {
		expires = FormatTime(*grant.ExpiresAt)
	}
	fmt.Fprintf(a.out, "Granted event permission to student %d until %s\n", studentID, expires)
	return nil
}

func (a *app) runRevoke(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: console revoke <student-id>")
	}
	studentID, err := requiredID(args[0], "student-id")
	if err != nil {
		return err
	}
	if _, err := a.identity(ctx); err != nil {
		return err
	}
	if err := a.conduct.RevokeEventPermission(ctx, studentID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Revoked event permission of student %d\n", studentID)
	return nil
}

func (a *app) runRequest(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: console request <METHOD> <PATH> [JSON]")
	}
	method := strings.ToUpper(args[0])
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return apperr.New(apperr.KindInvalidRequest, "unsupported method "+method)
	}

	req := transport.Request{Method: method, Path: args[1]}
	if len(args) == 3 {
		if !json.Valid([]byte(args[2])) {
			return apperr.New(apperr.KindInvalidRequest, "request body is not valid JSON")
		}
		req.Body = json.RawMessage(args[2])
	}

	if _, err := a.identity(ctx); err != nil {
		return err
	}
	var out json.RawMessage
	if err := a.session.DoRequest(ctx, req, &out); err != nil {
		return err
	}
	if len(out) == 0 {
		fmt.Fprintln(a.out, "null")
		return nil
	}
	return PrintJSON(a.out, out)
}

// runShell reads commands line by line against one session, so --ephemeral tokens
// live as long as the shell. Session transitions are announced as they happen.
func (a *app) runShell(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: console shell")
	}

	unsubscribe := a.session.Subscribe(func(state session.State, identity *model.Identity) {
		switch state {
		case session.StateExpired:
			fmt.Fprintln(a.out, "* session expired, sign in again with: login")
		case session.StateAuthenticated:
			if identity != nil {
				a.log.Debug().Str("user", identity.Username).Msg("Session active")
			}
		}
	})
	defer unsubscribe()

	for {
		fmt.Fprint(a.out, "conduct> ")
		line, err := a.in.ReadString('\n')
		fields := strings.Fields(line)
		if len(fields) > 0 {
			switch fields[0] {
			case "exit", "quit":
				return nil
			case "shell":
				fmt.Fprintln(a.out, "error: already in a shell")
			default:
				if cmdErr := a.run(ctx, fields[0], fields[1:]); cmdErr != nil {
					fmt.Fprintf(a.out, "error: %s\n", describeError(cmdErr))
				}
			}
		}
		if err != nil {
			fmt.Fprintln(a.out)
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func optionalID(args []string, idx int, name string) (int, error) {
	if len(args) <= idx {
		return 0, nil
	}
	return requiredID(args[idx], name)
}

func requiredID(raw, name string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.KindInvalidRequest, name+" must be a positive integer")
	}
	return id, nil
}
