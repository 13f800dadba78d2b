package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/privacybydesign/irmajs/cmd/internal/render"
	"github.com/privacybydesign/irmajs/cmd/security/requestor"
	"github.com/privacybydesign/irmajs/cmd/session"
	v1 "github.com/privacybydesign/irmajs/shared/contracts/session/v1"
)

type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg Config
	log *slog.Logger
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "irmasession",
		Short:         "Start and follow IRMA sessions as a requestor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Flags())
		},
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	bindFlags(root.PersistentFlags())

	root.AddCommand(
		c.startCmd(),
		c.runCmd(),
		c.waitCmd(),
		c.resultCmd(),
		c.cancelCmd(),
		c.signCmd(),
		c.validateCmd(),
	)
	return root
}

func (c *cli) setup(fs *pflag.FlagSet) error {
	path, err := fs.GetString("config")
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.applyFlags(fs); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := NewLogger(cfg.LogLevel, cfg.LogFormat, c.errOut)
	if err != nil {
		return err
	}
	c.cfg, c.log = cfg, log
	return nil
}

func (c *cli) startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [REQUEST_FILE]",
		Short: "Start a session and print its pointer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, auth, err := c.request(args)
			if err != nil {
				return err
			}
			sess, err := New(c.cfg, c.log).Client().Start(cmd.Context(), c.cfg.Server, req, auth)
			if err != nil {
				return err
			}
			return c.printJSON(struct {
				SessionPtr v1.Pointer `json:"sessionPtr"`
				Token      string     `json:"token"`
				TraceID    string     `json:"traceId"`
			}{sess.Pointer, sess.Token, sess.TraceID})
		},
	}
}

func (c *cli) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [REQUEST_FILE]",
		Short: "Start a session, present it and wait for its outcome",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd.Flags())
			if err != nil {
				return err
			}
			if _, err := opts.Validate(); err != nil {
				return err
			}
			req, auth, err := c.request(args)
			if err != nil {
				return err
			}

			a := New(c.cfg, c.log)
			var out session.Outcome
			err = a.withMetrics(cmd.Context(), func(ctx context.Context) error {
				var err error
				out, err = a.Client().Run(ctx, c.cfg.Server, req, auth, opts)
				return err
			})
			if err != nil {
				return err
			}
			return c.printJSON(struct {
				Status v1.Status `json:"status"`
				Result any       `json:"result,omitempty"`
			}{out.Status, out.Result})
		},
	}
	bindOptionFlags(cmd.Flags())
	return cmd
}

func (c *cli) waitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait POINTER_URL",
		Short: "Wait for a session to reach CONNECTED or DONE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("for")
			want, err := v1.ParseStatus(raw)
			if err != nil {
				return err
			}
			ptr := v1.Pointer{U: strings.TrimRight(args[0], "/")}
			st, err := New(c.cfg, c.log).Client().WaitStatus(cmd.Context(), ptr, want)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, st)
			return err
		},
	}
	cmd.Flags().String("for", string(v1.StatusDone), "status to wait for: CONNECTED or DONE")
	return cmd
}

func (c *cli) resultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result TOKEN",
		Short: "Fetch the result of a finished session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := session.ResultJSON
			if jwt, _ := cmd.Flags().GetBool("jwt"); jwt {
				kind = session.ResultJWT
			}
			if legacy, _ := cmd.Flags().GetBool("legacy"); legacy {
				kind = session.ResultLegacyJWT
			}

			res, err := New(c.cfg, c.log).Client().Result(cmd.Context(), c.cfg.Server, args[0], kind)
			if err != nil {
				return err
			}
			if s, ok := res.(string); ok {
				_, err = fmt.Fprintln(c.out, s)
				return err
			}
			return c.printJSON(res)
		},
	}
	cmd.Flags().Bool("jwt", false, "fetch the signed result-jwt")
	cmd.Flags().Bool("legacy", false, "fetch the signed result from the legacy getproof endpoint")
	return cmd
}

func (c *cli) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel POINTER_URL",
		Short: "Cancel a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ptr := v1.Pointer{U: strings.TrimRight(args[0], "/")}
			if err := New(c.cfg, c.log).Client().Cancel(cmd.Context(), ptr); err != nil {
				return err
			}
			c.log.Info("session.cancelled", "u", ptr.U)
			return nil
		},
	}
}

func (c *cli) signCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign [REQUEST_FILE]",
		Short: "Print the requestor JWT for a session request",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			req, auth, err := c.request(args)
			if err != nil {
				return err
			}
			token, err := requestor.Sign(req, auth)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, token)
			return err
		},
	}
}

func (c *cli) validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate session options without contacting a server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := c.options(cmd.Flags())
			if err != nil {
				return err
			}
			opts, err = opts.Validate()
			if err != nil {
				return err
			}
			return c.printJSON(struct {
				Method       session.Method `json:"method"`
				ReturnStatus v1.Status      `json:"returnStatus"`
				Server       string         `json:"server,omitempty"`
				Language     string         `json:"language"`
			}{opts.Method, opts.ReturnStatus, opts.Server, opts.Language})
		},
	}
	bindOptionFlags(cmd.Flags())
	return cmd
}

func bindOptionFlags(fs *pflag.FlagSet) {
	fs.String("method", "", "presentation: immediate, interactive, headless or custom-canvas")
	fs.String("return-status", "", "return at INITIALIZED, CONNECTED or DONE")
	fs.Bool("result", false, "fetch the session result once DONE")
	fs.Bool("result-as-token", false, "fetch the signed result-jwt instead of the JSON result")
	fs.Bool("legacy-result-jwt", false, "fetch the signed result from the legacy getproof endpoint")
	fs.Bool("disable-auto-redirect", false, "ask the renderer not to redirect on mobile")
}

func (c *cli) options(fs *pflag.FlagSet) (session.Options, error) {
	rawMethod, _ := fs.GetString("method")
	method, err := session.ParseMethod(rawMethod)
	if err != nil {
		return session.Options{}, err
	}

	opts := session.Options{
		Method:   method,
		Language: c.cfg.Language,
		Renderer: render.ForMethod(method, c.out),
	}

	if raw, _ := fs.GetString("return-status"); raw != "" {
		st, err := v1.ParseStatus(raw)
		if err != nil {
			return session.Options{}, fmt.Errorf("%w: %v", session.ErrInvalidOptions, err)
		}
		opts.ReturnStatus = st
	}

	opts.ResultAsToken, _ = fs.GetBool("result-as-token")
	opts.LegacyResultJWT, _ = fs.GetBool("legacy-result-jwt")
	opts.DisableAutoRedirect, _ = fs.GetBool("disable-auto-redirect")
	if fetch, _ := fs.GetBool("result"); fetch || opts.ResultAsToken || opts.LegacyResultJWT {
		opts.Server = c.cfg.Server
	}
	return opts, nil
}

// request reads the session request from the file in args, or stdin.
func (c *cli) request(args []string) (json.RawMessage, requestor.Auth, error) {
	var (
		b   []byte
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		b, err = io.ReadAll(c.in)
	} else {
		b, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, requestor.Auth{}, fmt.Errorf("read session request: %w", err)
	}
	if !json.Valid(b) {
		return nil, requestor.Auth{}, fmt.Errorf("%w: request is not valid JSON", requestor.ErrNotASessionRequest)
	}

	auth, err := c.cfg.RequestorAuth()
	if err != nil {
		return nil, requestor.Auth{}, err
	}
	return json.RawMessage(b), auth, nil
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
