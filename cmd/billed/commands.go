package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/gabriel-vasile/mimetype"
	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/remote"
)

// shell holds the flags shared by every subcommand
type shell struct {
	stdout io.Writer

	server   *string
	email    *string
	admin    *bool
	authUser *string
	authPass *string
	verbose  *bool
}

func (sh *shell) command() *ff.Command {
	rootFlags := ff.NewFlagSet("billed")
	sh.server = rootFlags.StringLong("server", "http://localhost:8080", "billed server URL")
	sh.email = rootFlags.StringLong("email", "", "email of the connected employee")
	sh.admin = rootFlags.BoolLong("admin", "connect as an administrator")
	sh.authUser = rootFlags.StringLong("auth-user", "", "basic auth username (optional)")
	sh.authPass = rootFlags.StringLong("auth-pass", "", "basic auth password (optional)")
	sh.verbose = rootFlags.BoolLong("verbose", "log requests and skipped records")
	showVersion := rootFlags.BoolLong("version", "show version information")

	root := &ff.Command{
		Name:      "billed",
		Usage:     "billed [FLAGS] <SUBCOMMAND>",
		ShortHelp: "submit and review expense reports",
		Flags:     rootFlags,
		Exec: func(ctx context.Context, args []string) error {
			if *showVersion {
				fmt.Fprintln(sh.stdout, version)
				return nil
			}
			return ff.ErrHelp
		},
	}

	root.Subcommands = append(root.Subcommands, sh.listCommand(rootFlags), sh.submitCommand(rootFlags))
	return root
}

// store connects to the server with the session given on the command line
func (sh *shell) store() (bill.Store, bill.Session, error) {
	setupLogging(os.Stderr, *sh.verbose)

	if *sh.email == "" {
		return nil, bill.Session{}, errors.New("--email is required")
	}
	session := bill.Session{Email: *sh.email, Type: bill.UserEmployee}
	if *sh.admin {
		session.Type = bill.UserAdmin
	}

	var opts []remote.Option
	if *sh.authUser != "" || *sh.authPass != "" {
		opts = append(opts, remote.WithBasicAuth(*sh.authUser, *sh.authPass))
	}
	return remote.New(*sh.server, session, opts...), session, nil
}

func (sh *shell) listCommand(parent *ff.FlagSet) *ff.Command {
	flags := ff.NewFlagSet("list").SetParent(parent)
	return &ff.Command{
		Name:      "list",
		Usage:     "billed list [FLAGS]",
		ShortHelp: "show your bills, most recent first",
		Flags:     flags,
		Exec: func(ctx context.Context, args []string) error {
			store, _, err := sh.store()
			if err != nil {
				return err
			}
			rows, err := bill.NewBillsList(store).FetchAndFormat(ctx)
			if err != nil {
				return listError(err)
			}
			return printRows(sh.stdout, rows)
		},
	}
}

// listError reduces a listing failure to the message shown to the user
func listError(err error) error {
	var fetchErr *bill.FetchError
	if errors.As(err, &fetchErr) {
		slog.Debug("Listing failed", "error", err)
		return errors.New(fetchErr.Message())
	}
	return err
}

func printRows(w io.Writer, rows []bill.Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "Aucune note de frais")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Type\tNom\tDate\tMontant\tStatut\tJustificatif")
	for _, r := range rows {
		receipt := "-"
		if r.HasReceipt() {
			receipt = r.FileURL
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s €\t%s\t%s\n", r.Type, r.Name, r.DisplayDate, r.DisplayAmount, r.DisplayStatus, receipt)
	}
	return tw.Flush()
}

func (sh *shell) submitCommand(parent *ff.FlagSet) *ff.Command {
	flags := ff.NewFlagSet("submit").SetParent(parent)
	var (
		file       = flags.StringLong("file", "", "receipt image (jpg, jpeg or png)")
		expense    = flags.StringLong("type", "", "expense type, e.g. Transports")
		name       = flags.StringLong("name", "", "expense name")
		date       = flags.StringLong("date", "", "expense date (YYYY-MM-DD)")
		amount     = flags.StringLong("amount", "", "amount including VAT")
		vat        = flags.StringLong("vat", "", "VAT amount")
		pct        = flags.StringLong("pct", "", "VAT percentage (default 20)")
		commentary = flags.StringLong("commentary", "", "free comment")
	)

	return &ff.Command{
		Name:      "submit",
		Usage:     "billed submit --file RECEIPT --amount AMOUNT [FLAGS]",
		ShortHelp: "upload a receipt and send a new bill",
		Flags:     flags,
		Exec: func(ctx context.Context, args []string) error {
			store, session, err := sh.store()
			if err != nil {
				return err
			}

			form := bill.Form{
				Type:       *expense,
				Name:       *name,
				Date:       *date,
				Amount:     *amount,
				VAT:        *vat,
				Pct:        *pct,
				Commentary: *commentary,
			}
			return sh.submit(ctx, store, session, *file, form)
		},
	}
}

// submit runs the two submission steps the way the new bill page does:
// pick the receipt, then send the form.
func (sh *shell) submit(ctx context.Context, store bill.Store, session bill.Session, path string, form bill.Form) error {
	var rejected string
	navigate := func(route string) {
		fmt.Fprintf(sh.stdout, "Note de frais envoyée, retour à %s\n", route)
	}
	submission := bill.NewSubmission(store, session, navigate,
		bill.WithValidityReporter(func(message string) { rejected = message }))

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading receipt: %w", err)
		}
		err = submission.HandleFileSelection(ctx, bill.File{
			Name:        filepath.Base(path),
			ContentType: mimetype.Detect(data).String(),
			Data:        data,
		})
		if rejected != "" {
			return errors.New(rejected)
		}
		if err != nil {
			return err
		}
		fileURL, fileName := submission.Receipt()
		slog.Debug("Receipt uploaded", "file_url", fileURL, "file_name", fileName, "bill", submission.BillID())

		if suggestion := submission.Suggestion(); suggestion != nil {
			form = prefill(form, suggestion)
		}
	}

	return submission.HandleSubmit(ctx, form)
}

// prefill copies scanned values into the fields left empty
func prefill(form bill.Form, s *bill.Suggestion) bill.Form {
	if form.Type == "" {
		form.Type = s.Type
	}
	if form.Name == "" {
		form.Name = s.Name
	}
	if form.Date == "" {
		form.Date = s.Date
	}
	if form.Amount == "" && !s.Amount.IsZero() {
		form.Amount = s.Amount.String()
	}
	if form.VAT == "" && !s.VAT.IsZero() {
		form.VAT = s.VAT.String()
	}
	return form
}
