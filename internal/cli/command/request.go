package command

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/authctl/internal/core/domain"
	"github.com/yndnr/authctl/internal/session"
	"github.com/yndnr/authctl/internal/telemetry/logger"
)

// errSessionAbandoned is returned when the session is configured to drop
// unrecoverable calls silently; the process still has to exit non-zero.
var errSessionAbandoned = domain.ErrSessionExpired.WithDetails("request abandoned")

// RequestCommand returns the request command.
func RequestCommand() *cli.Command {
	return &cli.Command{
		Name:      "request",
		Aliases:   []string{"req"},
		Usage:     "Send an authenticated request to the API",
		ArgsUsage: "METHOD PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Request body; @FILE reads a file, @- reads stdin",
			},
			&cli.StringSliceFlag{
				Name:    "header",
				Aliases: []string{"H"},
				Usage:   "Extra header as 'Name: value' (repeatable)",
			},
			&cli.BoolFlag{
				Name:    "include",
				Aliases: []string{"i"},
				Usage:   "Print the status line and response headers",
			},
		},
		Action: requestAction,
	}
}

func requestAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: %s request METHOD PATH", AppName)
	}
	rt := runtimeFrom(c)

	method := strings.ToUpper(c.Args().Get(0))
	path := c.Args().Get(1)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	header, err := parseHeaders(c.StringSlice("header"))
	if err != nil {
		return err
	}
	body, err := readData(c.String("data"), rt.stdin)
	if err != nil {
		return err
	}

	mgr, err := rt.manager(c.Context)
	if err != nil {
		return err
	}

	resp, err := mgr.Request(c.Context, path, &session.RequestOptions{
		Method: method,
		Header: header,
		Body:   body,
	})
	if err != nil {
		return err
	}
	if resp == nil {
		return errSessionAbandoned
	}
	defer resp.Body.Close()

	if c.Bool("include") {
		writeResponseHead(rt.stdout, resp)
	}
	if _, err := io.Copy(rt.stdout, resp.Body); err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

// parseHeaders turns "Name: value" entries into a header.
func parseHeaders(entries []string) (http.Header, error) {
	h := make(http.Header)
	for _, e := range entries {
		name, value, ok := strings.Cut(e, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want 'Name: value'", e)
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}

// readData resolves a --data value. Empty means no body.
func readData(data string, stdin io.Reader) ([]byte, error) {
	switch {
	case data == "":
		return nil, nil
	case data == "@-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		return b, nil
	default:
		return []byte(data), nil
	}
}

// maskedHeaders carry credentials and are printed masked.
var maskedHeaders = map[string]bool{
	http.CanonicalHeaderKey(domain.HeaderNewAccessToken):  true,
	http.CanonicalHeaderKey(domain.HeaderNewRefreshToken): true,
}

func writeResponseHead(w io.Writer, resp *http.Response) {
	fmt.Fprintf(w, "%s %s\n", resp.Proto, resp.Status)

	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range resp.Header[name] {
			if maskedHeaders[name] {
				v = logger.MaskToken(v)
			}
			fmt.Fprintf(w, "%s: %s\n", name, v)
		}
	}
	fmt.Fprintln(w)
}
