// Command biopassctl is an operator client for a running biopass-server.
//
//	biopassctl [--server URL] register --name N --code C --phone P --email E --key K
//	biopassctl [--server URL] checkin --key K [--proto]
//	biopassctl [--server URL] students
//	biopassctl [--server URL] attendance [--from D] [--to D]
//	biopassctl [--server URL] report --code C [--from D] [--to D]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/types"
	"github.com/BrandonDHaskell/Biopass/server/internal/httpapi"
)

const usage = `usage: biopassctl [--server URL] <command> [flags]

commands:
  register     enrol a student
  checkin      submit a biometric key as the sensor would
  students     list enrolled students
  attendance   list attendance events (--from/--to)
  report       one student's attendance (--code, --from/--to)
`

type client struct {
	base string
	http *http.Client
	out  io.Writer
}

func main() {
	global := pflag.NewFlagSet("biopassctl", pflag.ExitOnError)
	server := global.String("server", envOr("BIOPASS_SERVER", "http://localhost:8080"), "biopass-server base URL")
	timeout := global.Duration("timeout", 10*time.Second, "request timeout")
	global.SetInterspersed(false)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage); global.PrintDefaults() }
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := &client{base: strings.TrimRight(*server, "/"), http: &http.Client{Timeout: *timeout}, out: os.Stdout}

	var err error
	switch args[0] {
	case "register":
		err = c.register(ctx, args[1:])
	case "checkin":
		err = c.checkIn(ctx, args[1:])
	case "students":
		err = c.students(ctx)
	case "attendance":
		err = c.attendance(ctx, args[1:])
	case "report":
		err = c.report(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		global.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "biopassctl %s: %v\n", args[0], err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (c *client) register(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("register", pflag.ContinueOnError)
	var req types.RegisterRequest
	fs.StringVar(&req.Name, "name", "", "full name")
	fs.StringVar(&req.RegistrationCode, "code", "", "registration code")
	fs.StringVar(&req.Phone, "phone", "", "phone number")
	fs.StringVar(&req.Email, "email", "", "email address")
	fs.Int64Var(&req.BiometricKey, "key", 0, "biometric key from the enrolment sensor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	var out types.RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/api/register", "application/json", body, &out); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "registered %s (%s) id=%s key=%d\n",
		out.Student.Name, out.Student.RegistrationCode, out.Student.ID, out.Student.BiometricKey)
	return nil
}

func (c *client) checkIn(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("checkin", pflag.ContinueOnError)
	key := fs.Int64("key", 0, "biometric key")
	asProto := fs.Bool("proto", false, "send the protobuf encoding used by sensors")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*asProto {
		body, err := json.Marshal(types.CheckInRequest{BiometricKey: *key})
		if err != nil {
			return err
		}
		var out types.CheckInResponse
		if err := c.do(ctx, http.MethodPost, "/api/attendance", "application/json", body, &out); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s: %s (%s) event=%d day=%s at=%s\n",
			out.Outcome, out.Name, out.Phone, out.EventID, out.Day, out.Timestamp)
		return nil
	}

	pb := httpapi.CheckInRequestPB{
		BiometricKey: *key,
		RequestedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	raw, err := c.send(ctx, http.MethodPost, "/api/attendance", "application/x-protobuf", pb.Marshal())
	if err != nil {
		return err
	}
	var out httpapi.CheckInResponsePB
	if err := out.Unmarshal(raw); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	outcome := "recorded"
	if out.Outcome == httpapi.OutcomeAlreadyRecordedPB {
		outcome = "already_recorded"
	}
	fmt.Fprintf(c.out, "%s: %s (%s) event=%d at=%s\n", outcome, out.Name, out.Phone, out.EventID,
		time.UnixMilli(out.RecordedAtMs).UTC().Format(time.RFC3339Nano))
	return nil
}

func (c *client) students(ctx context.Context) error {
	var out types.StudentsResponse
	if err := c.do(ctx, http.MethodGet, "/api/students", "", nil, &out); err != nil {
		return err
	}
	for _, s := range out.Students {
		fmt.Fprintf(c.out, "%-12s %-24s key=%-6d %s %s\n", s.RegistrationCode, s.Name, s.BiometricKey, s.Phone, s.Email)
	}
	fmt.Fprintf(c.out, "%d students\n", out.Count)
	return nil
}

func rangeQuery(fs *pflag.FlagSet) url.Values {
	q := url.Values{}
	if v, _ := fs.GetString("from"); v != "" {
		q.Set("startDate", v)
	}
	if v, _ := fs.GetString("to"); v != "" {
		q.Set("endDate", v)
	}
	return q
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (c *client) attendance(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("attendance", pflag.ContinueOnError)
	fs.String("from", "", "start (YYYY-MM-DD or RFC 3339, inclusive)")
	fs.String("to", "", "end (YYYY-MM-DD inclusive of that day, or RFC 3339 exclusive)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var out types.AttendanceResponse
	if err := c.do(ctx, http.MethodGet, withQuery("/api/attendance", rangeQuery(fs)), "", nil, &out); err != nil {
		return err
	}
	for _, e := range out.Attendance {
		fmt.Fprintf(c.out, "%s %-12s %-24s event=%d\n", e.Timestamp, e.Student.RegistrationCode, e.Student.Name, e.EventID)
	}
	fmt.Fprintf(c.out, "%d events\n", out.Count)
	return nil
}

func (c *client) report(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("report", pflag.ContinueOnError)
	code := fs.String("code", "", "registration code")
	fs.String("from", "", "start (YYYY-MM-DD or RFC 3339, inclusive)")
	fs.String("to", "", "end (YYYY-MM-DD inclusive of that day, or RFC 3339 exclusive)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *code == "" {
		return errors.New("--code is required")
	}

	path := withQuery("/api/attendance/student/"+url.PathEscape(*code), rangeQuery(fs))
	var out types.StudentAttendanceResponse
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s (%s) %s %s\n", out.Student.Name, out.Student.RegistrationCode, out.Student.Phone, out.Student.Email)
	for _, a := range out.Attendance {
		fmt.Fprintf(c.out, "  %s %s event=%d\n", a.Day, a.Timestamp, a.EventID)
	}
	fmt.Fprintf(c.out, "%d days attended\n", out.Count)
	return nil
}

func (c *client) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	raw, err := c.send(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *client) send(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var er types.ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			if er.Field != "" {
				return nil, fmt.Errorf("%s (%d): %s [%s]", er.Error, resp.StatusCode, er.Message, er.Field)
			}
			return nil, fmt.Errorf("%s (%d): %s", er.Error, resp.StatusCode, er.Message)
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return raw, nil
}
