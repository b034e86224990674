package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"universes/internal/client"
	"universes/internal/inline"
	"universes/internal/logger"
	"universes/internal/timeunit"
)

var timeNow = time.Now

// expansionTTL is how long a card stays expanded in Redis without use.
const expansionTTL = 30 * 24 * time.Hour

type cardOptions struct {
	yes     bool
	session string
	unit    string
	minutes int
	notes   string
}

// cardSession is one page worth of cards driven from the terminal.
type cardSession struct {
	api    *client.Client
	page   *inline.Page
	log    *zap.Logger
	out    io.Writer
	errOut io.Writer
	fired  chan struct{}
	close  func()

	mu    sync.Mutex
	slots map[string]inline.Slots
}

func newCardCmd(app *App) *cobra.Command {
	opts := &cardOptions{}
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Edit tasks and universes through the card editors of a running server",
	}
	cmd.PersistentFlags().BoolVarP(&opts.yes, "yes", "y", false, "answer yes to confirmations")
	cmd.PersistentFlags().StringVar(&opts.session, "session", "cli", "session key for remembered card expansion")

	edit := &cobra.Command{
		Use:   "edit <task|universe> <id> <field> [value...]",
		Short: "Change one field",
		Long: strings.TrimSpace(`
Fields of a task: name, description, deadline, estimate, recurring, universes.
Fields of a universe: name, status.

deadline takes "2006-01-02T15:04", "today" (17:00) or "none".
estimate takes a number in --unit (hours or minutes), or "none".
universes takes a comma separated list of ids; prefix the primary with "*".
`),
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseCardRef(args[0], args[1])
			if err != nil {
				return err
			}
			return app.withCards(cmd, opts, func(s *cardSession) error {
				card, err := s.mount(cmd.Context(), kind, id)
				if err != nil {
					return err
				}
				field := args[2]
				if err := applyEdit(cmd.Context(), card, field, strings.Join(args[3:], " "), opts.unit); err != nil {
					return err
				}
				fmt.Fprintln(s.out, s.displayText(editorField(field)))
				return nil
			})
		},
	}
	edit.Flags().StringVar(&opts.unit, "unit", "", "unit of an estimate: hours or minutes")

	complete := &cobra.Command{
		Use:   "complete <id>",
		Short: "Tick the complete box of a task and wait out the delay (Ctrl-C cancels)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, id, err := parseCardRef("task", args[0])
			if err != nil {
				return err
			}
			return app.withCards(cmd, opts, func(s *cardSession) error {
				card, err := s.mount(cmd.Context(), inline.KindTask, id)
				if err != nil {
					return err
				}
				return s.complete(cmd.Context(), card)
			})
		},
	}

	skip := &cobra.Command{
		Use:   "skip <id>",
		Short: "Skip or unskip a recurring task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, id, err := parseCardRef("task", args[0])
			if err != nil {
				return err
			}
			return app.withCards(cmd, opts, func(s *cardSession) error {
				card, err := s.mount(cmd.Context(), inline.KindTask, id)
				if err != nil {
					return err
				}
				if !card.ToggleSkip(cmd.Context()) {
					return errors.New("task can not be skipped")
				}
				fmt.Fprintln(s.out, card.DisplayStatus())
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <task|universe> <id>",
		Short: "Delete a task or universe",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseCardRef(args[0], args[1])
			if err != nil {
				return err
			}
			return app.withCards(cmd, opts, func(s *cardSession) error {
				card, err := s.mount(cmd.Context(), kind, id)
				if err != nil {
					return err
				}
				if err := card.Delete(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(s.out, "deleted")
				return nil
			})
		},
	}

	logCmd := &cobra.Command{
		Use:   "log <task|universe> <id>",
		Short: "Log minutes or notes against a task or universe",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseCardRef(args[0], args[1])
			if err != nil {
				return err
			}
			var minutes *int
			if cmd.Flags().Changed("minutes") {
				minutes = &opts.minutes
			}
			return app.withCards(cmd, opts, func(s *cardSession) error {
				card, err := s.mount(cmd.Context(), kind, id)
				if err != nil {
					return err
				}
				if !card.LogTime(cmd.Context(), minutes, opts.notes) {
					return errors.New("log not saved")
				}
				fmt.Fprintln(s.out, "logged")
				return nil
			})
		},
	}
	logCmd.Flags().IntVar(&opts.minutes, "minutes", 0, "minutes spent")
	logCmd.Flags().StringVar(&opts.notes, "notes", "", "notes")

	toggle := &cobra.Command{
		Use:   "toggle <task|universe> <id>",
		Short: "Expand or collapse a card; the state is remembered per session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseCardRef(args[0], args[1])
			if err != nil {
				return err
			}
			return app.withCards(cmd, opts, func(s *cardSession) error {
				card, err := s.mount(cmd.Context(), kind, id)
				if err != nil {
					return err
				}
				card.Toggle(cmd.Context())
				if card.Expanded() {
					fmt.Fprintln(s.out, "expanded")
				} else {
					fmt.Fprintln(s.out, "collapsed")
				}
				return nil
			})
		},
	}

	cmd.AddCommand(edit, complete, skip, del, logCmd, toggle)
	return cmd
}

// withCards connects to the API and runs fn with a fresh page.
func (app *App) withCards(cmd *cobra.Command, opts *cardOptions, fn func(*cardSession) error) error {
	log, err := logger.New(app.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	api := client.New(app.cfg.APIURL, app.cfg.CSRFToken, client.WithLogger(log))
	if app.cfg.CSRFToken == "" {
		token, err := api.FetchToken(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch csrf token: %w", err)
		}
		api.SetToken(token)
	}

	s := &cardSession{
		api:    api,
		log:    log,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		fired:  make(chan struct{}, 1),
		close:  func() {},
		slots:  make(map[string]inline.Slots),
	}

	var expansion inline.ExpansionStore = inline.NewMemoryExpansionStore()
	if app.cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
		s.close = func() { _ = rdb.Close() }
		expansion = inline.NewRedisExpansionStore(rdb, "", opts.session, expansionTTL)
	}
	defer s.close()

	var confirmer inline.Confirmer = inline.FixedConfirmer(true)
	if !opts.yes {
		confirmer = &promptConfirmer{in: bufio.NewReader(cmd.InOrStdin()), out: s.errOut}
	}

	page, err := inline.NewPage(inline.PageOptions{
		API:       api,
		Alerter:   &writerAlerter{w: s.errOut},
		Confirmer: confirmer,
		Logger:    log,
		Expansion: expansion,
		Now:       timeNow,
		AfterFunc: s.afterFunc,
	})
	if err != nil {
		return err
	}
	s.page = page
	return fn(s)
}

func (s *cardSession) views() inline.Views {
	return inline.Views{
		Slots: func(field, value string) inline.Slots {
			slots := inline.HeadlessSlots(value, value)
			s.mu.Lock()
			s.slots[field] = slots
			s.mu.Unlock()
			return slots
		},
	}
}

func (s *cardSession) displayText(field string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slots, ok := s.slots[field]; ok {
		return slots.Display.Text()
	}
	return ""
}

func (s *cardSession) mount(ctx context.Context, kind inline.Kind, id uint) (*inline.Card, error) {
	if kind == inline.KindUniverse {
		u, err := s.api.Universe(ctx, id)
		if err != nil {
			return nil, apiError(err, "Could not load the universe.")
		}
		return s.page.MountUniverseWith(ctx, u, s.views()), nil
	}

	task, err := s.api.Task(ctx, id)
	if err != nil {
		return nil, apiError(err, "Could not load the task.")
	}
	universes, err := s.api.Universes(ctx)
	if err != nil {
		return nil, apiError(err, "Could not load universes.")
	}
	recurring, err := s.api.RecurringTasks(ctx)
	if err != nil {
		return nil, apiError(err, "Could not load recurring tasks.")
	}
	lookups := inline.Lookups{
		Universes: make(map[uint]string, len(universes)),
		Recurring: make(map[uint]string, len(recurring)),
	}
	for _, u := range universes {
		lookups.Universes[u.ID] = u.Name
	}
	for _, r := range recurring {
		lookups.Recurring[r.ID] = r.Name
	}
	return s.page.MountTaskWith(ctx, task, lookups, s.views()), nil
}

// afterFunc runs the completion delay on a real timer and signals fired
// once the delayed call has returned.
func (s *cardSession) afterFunc(d time.Duration, f func()) inline.Timer {
	fmt.Fprintf(s.errOut, "completing in %s, press Ctrl-C to cancel\n", d)
	return time.AfterFunc(d, func() {
		f()
		s.fired <- struct{}{}
	})
}

func (s *cardSession) complete(ctx context.Context, card *inline.Card) error {
	if card.Completion() == inline.Completed {
		fmt.Fprintln(s.out, "already completed")
		return nil
	}
	card.SetChecked(context.WithoutCancel(ctx), true)
	select {
	case <-s.fired:
	case <-ctx.Done():
		if card.CancelComplete() {
			fmt.Fprintln(s.out, "cancelled")
			return nil
		}
		<-s.fired
	}
	if card.Completion() != inline.Completed {
		return errors.New("task not completed")
	}
	fmt.Fprintln(s.out, card.DisplayStatus())
	return nil
}

// applyEdit runs one edit through the matching field editor.
func applyEdit(ctx context.Context, card *inline.Card, field, value, unit string) error {
	switch field {
	case "name":
		return editText(ctx, card.Name, value)
	case "description":
		return editText(ctx, card.Description, value)
	case "status":
		return editText(ctx, card.Status, value)
	case "recurring":
		if value == "none" {
			value = ""
		}
		if card.Recurring == nil {
			return unsupported(card, field)
		}
		return editText(ctx, card.Recurring.Editor, value)
	case "deadline":
		d := card.Deadline
		if d == nil {
			return unsupported(card, field)
		}
		if err := d.EnterEditMode(); err != nil {
			return err
		}
		switch value {
		case "today":
			d.Today(card.Page().Now())
		case "none":
			d.SetPending("")
		default:
			d.SetPending(value)
		}
		return d.Save(ctx)
	case "estimate":
		e := card.Estimate
		if e == nil {
			return unsupported(card, field)
		}
		if err := e.EnterEditMode(); err != nil {
			return err
		}
		if unit != "" {
			u, err := timeunit.ParseUnit(unit)
			if err != nil {
				return err
			}
			if err := e.SetUnit(u); err != nil {
				return err
			}
		}
		if value == "none" {
			value = ""
		}
		e.SetNumeral(value)
		return e.Save(ctx)
	case "universes":
		return editUniverses(ctx, card.Universes, value)
	}
	return unsupported(card, field)
}

func editText(ctx context.Context, e *inline.Editor, value string) error {
	if e == nil {
		return errors.New("field not available on this card")
	}
	if err := e.EnterEditMode(); err != nil {
		return err
	}
	e.SetPending(value)
	return e.Save(ctx)
}

// editUniverses replaces every row with the ids in value. "*" marks the
// primary universe; without one the first row stays primary.
func editUniverses(ctx context.Context, u *inline.UniversesEditor, value string) error {
	if u == nil {
		return errors.New("field not available on this card")
	}
	if err := u.EnterEditMode(); err != nil {
		return err
	}
	for len(u.Rows()) > 0 {
		if err := u.RemoveRow(0); err != nil {
			return err
		}
	}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		primary := strings.HasPrefix(part, "*")
		id, err := strconv.ParseUint(strings.TrimPrefix(part, "*"), 10, 64)
		if err != nil {
			return fmt.Errorf("universe id %q: %w", part, err)
		}
		if err := u.AddRow(); err != nil {
			return err
		}
		row := len(u.Rows()) - 1
		if err := u.Select(row, uint(id)); err != nil {
			return err
		}
		if primary {
			if err := u.SetPrimary(row); err != nil {
				return err
			}
		}
	}
	return u.Save(ctx)
}

// editorField maps a command line field to the editor field name.
func editorField(field string) string {
	switch field {
	case "deadline":
		return "deadline_at"
	case "estimate":
		return "estimated_time"
	case "recurring":
		return "recurring_task_id"
	case "universes":
		return "universe_ids"
	}
	return field
}

func unsupported(card *inline.Card, field string) error {
	return fmt.Errorf("%s cards have no field %q", strings.TrimSuffix(string(card.Kind()), "s"), field)
}

func parseCardRef(kind, id string) (inline.Kind, uint, error) {
	var k inline.Kind
	switch strings.ToLower(kind) {
	case "task", "tasks":
		k = inline.KindTask
	case "universe", "universes":
		k = inline.KindUniverse
	default:
		return "", 0, fmt.Errorf("unknown card kind %q", kind)
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(id, "#"), 10, 64)
	if err != nil || n == 0 {
		return "", 0, fmt.Errorf("invalid id %q", id)
	}
	return k, uint(n), nil
}

func apiError(err error, fallback string) error {
	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		return errors.New(apiErr.UserMessage(fallback))
	}
	return err
}

// writerAlerter prints alerts on a terminal.
type writerAlerter struct {
	w io.Writer
}

func (a *writerAlerter) Alert(message string) {
	fmt.Fprintln(a.w, "! "+message)
}

// promptConfirmer asks on the terminal and accepts y or yes.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (c *promptConfirmer) Confirm(question string) bool {
	fmt.Fprintf(c.out, "%s [y/N] ", question)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
